// Package dispatch implements the authoritative dispatcher: an optional
// optimizer pass followed by priority-ordered rule evaluation for the loads
// the optimizer left open. Its decisions may be executed directly.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/mqtt"
	"github.com/kilianp07/fleetdispatch/core/optimizer"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Optimizer runs the optimization pass. *optimizer.Optimizer implements it.
type Optimizer interface {
	Optimize(ctx context.Context, req optimizer.Request) (optimizer.Result, error)
}

// Engine produces dispatcher decisions for a fleet snapshot.
type Engine struct {
	optimizer Optimizer
	cfg       Config
	rules     []Rule
	logger    logger.Logger

	mu        sync.RWMutex
	metrics   metrics.MetricsSink
	bus       eventbus.EventBus
	publisher mqtt.DecisionPublisher
}

// NewEngine creates a dispatcher. opt may be nil when optimization is
// disabled.
func NewEngine(opt Optimizer, cfg Config, log logger.Logger) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UseOptimization && opt == nil {
		return nil, fmt.Errorf("dispatch: optimization enabled without an optimizer")
	}
	return &Engine{
		optimizer: opt,
		cfg:       cfg,
		rules:     applyRuleConfig(DefaultRules(), cfg.Rules),
		logger:    logger.OrNop(log),
		metrics:   metrics.NopSink{},
	}, nil
}

// SetMetricsSink configures the sink receiving dispatch records.
func (e *Engine) SetMetricsSink(sink metrics.MetricsSink) {
	e.mu.Lock()
	e.metrics = metrics.OrNop(sink)
	e.mu.Unlock()
}

// SetEventBus configures the bus receiving DispatchEvents.
func (e *Engine) SetEventBus(bus eventbus.EventBus) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
}

// SetPublisher configures where committed decisions are forwarded.
func (e *Engine) SetPublisher(p mqtt.DecisionPublisher) {
	e.mu.Lock()
	e.publisher = p
	e.mu.Unlock()
}

// Rules returns the active rule set in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// pass holds the mutable state of one Dispatch call.
type pass struct {
	snap       model.Snapshot
	assigned   map[string]bool
	usage      map[string]int
	usedTrucks map[string]bool
	bound      map[string]model.Truck
	known      map[string]bool
	decisions  []model.DispatcherDecision
	rules      []string
	ruleSeen   map[string]bool
}

func newPass(snap model.Snapshot) *pass {
	p := &pass{
		snap:       snap,
		assigned:   make(map[string]bool, len(snap.Loads)),
		usage:      make(map[string]int, len(snap.Drivers)),
		usedTrucks: make(map[string]bool),
		bound:      make(map[string]model.Truck),
		known:      make(map[string]bool, len(snap.Drivers)),
		ruleSeen:   make(map[string]bool),
	}
	for _, d := range snap.Drivers {
		p.known[d.ID] = true
	}
	for _, t := range snap.Trucks {
		if _, dup := p.bound[t.DriverID]; t.DriverID != "" && p.known[t.DriverID] && !dup {
			p.bound[t.DriverID] = t
		}
	}
	return p
}

func (p *pass) commit(d model.DispatcherDecision) {
	p.assigned[d.LoadID] = true
	p.usage[d.DriverID]++
	if d.TruckID != "" {
		p.usedTrucks[d.TruckID] = true
	}
	p.decisions = append(p.decisions, d)
	if !p.ruleSeen[d.RuleID] {
		p.ruleSeen[d.RuleID] = true
		p.rules = append(p.rules, d.RuleID)
	}
}

// Dispatch assigns the snapshot's loads. Each load appears in at most one
// decision; loads nobody can take are listed as unassigned. Publish failures
// are reported in PublishErrors and never revoke a decision.
func (e *Engine) Dispatch(ctx context.Context, snap model.Snapshot) (model.DispatchResult, error) {
	start := time.Now()
	if err := snap.Validate(); err != nil {
		return model.DispatchResult{}, fmt.Errorf("dispatch: %w", err)
	}
	e.mu.RLock()
	sink, bus, pub := e.metrics, e.bus, e.publisher
	e.mu.RUnlock()

	loads := model.SortLoads(snap.Loads)
	p := newPass(snap)
	mode := "rules"
	backend := ""

	if e.cfg.UseOptimization && len(loads) > 0 {
		if b, ok := e.optimizationPass(ctx, p, loads); ok {
			mode = "optimizer"
			backend = b
		}
	}

	for _, l := range loads {
		if p.assigned[l.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return model.DispatchResult{}, fmt.Errorf("dispatch: %w", err)
		}
		if d, ok := e.evaluateLoad(p, l); ok {
			p.commit(d)
		}
	}

	res := model.DispatchResult{
		Decisions:       p.decisions,
		UnassignedLoads: []string{},
		Metadata: model.DispatchMetadata{
			TotalLoads:    len(loads),
			AssignedLoads: len(p.decisions),
			RulesApplied:  p.rules,
			Backend:       backend,
		},
	}
	if res.Decisions == nil {
		res.Decisions = []model.DispatcherDecision{}
	}
	if res.Metadata.RulesApplied == nil {
		res.Metadata.RulesApplied = []string{}
	}
	for _, l := range loads {
		if !p.assigned[l.ID] {
			res.UnassignedLoads = append(res.UnassignedLoads, l.ID)
		}
	}
	if pub != nil {
		res.PublishErrors = e.publishDecisions(ctx, pub, res.Decisions)
	}
	res.Metadata.ExecutionTime = time.Since(start)

	for _, d := range res.Decisions {
		loadsDispatched.WithLabelValues(d.RuleID).Inc()
	}
	loadsUnassigned.Add(float64(len(res.UnassignedLoads)))
	dispatchLatency.WithLabelValues(mode).Observe(res.Metadata.ExecutionTime.Seconds())
	e.record(sink, bus, res, start)
	e.logger.Infof("dispatched %d/%d loads (%s)", res.Metadata.AssignedLoads, res.Metadata.TotalLoads, mode)
	return res, nil
}

// optimizationPass accepts optimizer assignments while the driver is under
// MaxAssignmentsPerDriver. It returns the answering backend, or false when
// the optimizer failed.
func (e *Engine) optimizationPass(ctx context.Context, p *pass, loads []model.Load) (string, bool) {
	out, err := e.optimizer.Optimize(ctx, optimizer.Request{
		Loads:             loads,
		Drivers:           p.snap.Drivers,
		Trucks:            p.snap.Trucks,
		Target:            e.cfg.Objective,
		Backend:           e.cfg.Backend,
		ProblemType:       e.cfg.ProblemType,
		MaxLoadsPerDriver: e.cfg.MaxAssignmentsPerDriver,
		AllowMultiple:     e.cfg.MaxAssignmentsPerDriver > 1,
	})
	if err != nil {
		optimizerFailure.Inc()
		e.logger.Warnf("optimizer failed, continuing with rules: %v", err)
		return "", false
	}
	drivers := make(map[string]model.Driver, len(p.snap.Drivers))
	for _, d := range p.snap.Drivers {
		drivers[d.ID] = d
	}
	priority := make(map[string]int, len(loads))
	pickup := make(map[string]model.Location, len(loads))
	for _, l := range loads {
		priority[l.ID] = l.Priority
		pickup[l.ID] = l.Pickup
	}
	reason := fmt.Sprintf("optimized by %s", out.Metadata.Backend)
	if out.Metadata.FallbackUsed {
		reason += fmt.Sprintf(" (fallback from %s)", out.Metadata.RequestedBackend)
	}
	for _, a := range out.Assignments {
		if p.assigned[a.LoadID] {
			continue
		}
		if p.usage[a.DriverID] >= e.cfg.MaxAssignmentsPerDriver {
			e.logger.Warnf("optimizer gave load %s to %s beyond the per-driver limit, left to rules", a.LoadID, a.DriverID)
			continue
		}
		route := make([]model.Point, 0, len(a.Route))
		for _, loc := range a.Route {
			route = append(route, loc.Point())
		}
		p.commit(model.DispatcherDecision{
			LoadID:        a.LoadID,
			DriverID:      a.DriverID,
			TruckID:       a.TruckID,
			RuleID:        RuleOptimizer,
			Reason:        reason,
			Confidence:    out.Metadata.Confidence,
			Priority:      priority[a.LoadID],
			DistanceMiles: model.DistanceMiles(drivers[a.DriverID].Location, pickup[a.LoadID]),
			Route:         route,
		})
	}
	return out.Metadata.Backend, true
}

type outcome struct {
	rule     Rule
	driver   model.Driver
	distance float64
}

func (o outcome) beats(other outcome) bool {
	if mine, theirs := o.rule.Score(), other.rule.Score(); mine != theirs {
		return mine > theirs
	}
	if o.distance != other.distance {
		return o.distance < other.distance
	}
	return o.driver.ID < other.driver.ID
}

// evaluateLoad returns the best rule outcome over the drivers still under
// their per-pass limit.
func (e *Engine) evaluateLoad(p *pass, l model.Load) (model.DispatcherDecision, bool) {
	var (
		best  outcome
		found bool
	)
	for _, d := range p.snap.Drivers {
		if p.usage[d.ID] >= e.cfg.MaxAssignmentsPerDriver {
			continue
		}
		c := Candidate{Load: l, Driver: d, Distance: model.DistanceMiles(d.Location, l.Pickup)}
		r, ok := e.bestRule(c)
		if !ok {
			continue
		}
		o := outcome{rule: r, driver: d, distance: c.Distance}
		if !found || o.beats(best) {
			best, found = o, true
		}
	}
	if !found {
		return model.DispatcherDecision{}, false
	}
	truck, _ := p.chooseTruck(best.driver, l)
	return model.DispatcherDecision{
		LoadID:        l.ID,
		DriverID:      best.driver.ID,
		TruckID:       truck.ID,
		RuleID:        best.rule.ID,
		Reason:        best.rule.Reason,
		Confidence:    best.rule.Confidence,
		Priority:      l.Priority,
		DistanceMiles: best.distance,
		Route:         []model.Point{l.Pickup.Point(), l.Delivery.Point()},
	}, true
}

// bestRule checks the required rules, then returns the highest-scoring
// enabled rule whose condition holds. Rules are in priority order, so ties
// go to the higher-priority rule.
func (e *Engine) bestRule(c Candidate) (Rule, bool) {
	for _, r := range e.rules {
		if r.Enabled && r.Required && !r.Condition(c) {
			return Rule{}, false
		}
	}
	var (
		best  Rule
		found bool
	)
	for _, r := range e.rules {
		if !r.Enabled || !r.applies(c) || !r.Condition(c) {
			continue
		}
		if !found || r.Score() > best.Score() {
			best, found = r, true
		}
	}
	return best, found
}

// chooseTruck returns the driver's own truck, else the nearest free truck
// able to carry the load.
func (p *pass) chooseTruck(d model.Driver, l model.Load) (model.Truck, bool) {
	if t, ok := p.bound[d.ID]; ok {
		return t, true
	}
	return model.NearestTruck(d.Location, p.snap.Trucks, func(t model.Truck) bool {
		if p.usedTrucks[t.ID] || t.Capacity < l.Weight {
			return false
		}
		return t.DriverID == "" || !p.known[t.DriverID]
	})
}

// publishDecisions forwards decisions concurrently and returns the failures
// keyed by load ID.
func (e *Engine) publishDecisions(ctx context.Context, pub mqtt.DecisionPublisher, decisions []model.DispatcherDecision) map[string]string {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs map[string]string
	)
	for _, d := range decisions {
		wg.Add(1)
		go func(d model.DispatcherDecision) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, e.cfg.PublishTimeout)
			defer cancel()
			err := pub.PublishDecision(pctx, d)
			if err == nil {
				publishSuccess.Inc()
				return
			}
			publishFailure.Inc()
			e.logger.Errorf("publish decision for load %s failed: %v", d.LoadID, err)
			mu.Lock()
			if errs == nil {
				errs = make(map[string]string)
			}
			errs[d.LoadID] = err.Error()
			mu.Unlock()
		}(d)
	}
	wg.Wait()
	return errs
}

func (e *Engine) record(sink metrics.MetricsSink, bus eventbus.EventBus, res model.DispatchResult, start time.Time) {
	if err := sink.RecordDispatch(metrics.DispatchRecord{
		TotalLoads:      res.Metadata.TotalLoads,
		AssignedLoads:   res.Metadata.AssignedLoads,
		Backend:         res.Metadata.Backend,
		RulesApplied:    res.Metadata.RulesApplied,
		PublishFailures: len(res.PublishErrors),
		Duration:        res.Metadata.ExecutionTime,
		Time:            start,
	}); err != nil {
		e.logger.Errorf("metrics error: %v", err)
	}
	if bus != nil {
		bus.Publish(events.DispatchEvent{
			TotalLoads:    res.Metadata.TotalLoads,
			AssignedLoads: res.Metadata.AssignedLoads,
			Backend:       res.Metadata.Backend,
			RulesApplied:  res.Metadata.RulesApplied,
			Duration:      res.Metadata.ExecutionTime,
		})
	}
}
