// Package assistant generates advisory suggestions for human dispatchers.
// Nothing it returns is authoritative: every suggestion requires review and
// only LogHumanDecision records a final outcome, in the audit log.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetdispatch/core/audit"
	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/optimizer"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// SystemUser is recorded on entries the engine writes itself.
const SystemUser = "system"

var (
	// ErrUnknownSuggestion is returned when no generation entry exists for
	// a suggestion ID.
	ErrUnknownSuggestion = errors.New("unknown suggestion")
	// ErrInvalidDecision is returned for malformed human decisions.
	ErrInvalidDecision = errors.New("invalid decision")
)

var suggestionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("fleetdispatch/suggestion"))

// SuggestionID derives the deterministic ID of a suggestion.
func SuggestionID(loadID, driverID string, source model.SuggestionSource) string {
	return uuid.NewSHA1(suggestionNamespace, []byte(loadID+"|"+driverID+"|"+string(source))).String()
}

// Optimizer runs the optimization pass. *optimizer.Optimizer implements it.
type Optimizer interface {
	Optimize(ctx context.Context, req optimizer.Request) (optimizer.Result, error)
}

// Engine produces suggestions and records human decisions.
type Engine struct {
	optimizer Optimizer
	cfg       Config
	log       *audit.Log
	logger    logger.Logger

	mu      sync.RWMutex
	metrics metrics.MetricsSink
	bus     eventbus.EventBus
}

// NewEngine creates an assistant writing to auditLog. opt may be nil when
// optimization is disabled.
func NewEngine(opt Optimizer, auditLog *audit.Log, cfg Config, log logger.Logger) (*Engine, error) {
	if auditLog == nil {
		return nil, fmt.Errorf("assistant: nil audit log")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.UseOptimization && opt == nil {
		return nil, fmt.Errorf("assistant: optimization enabled without an optimizer")
	}
	return &Engine{
		optimizer: opt,
		cfg:       cfg,
		log:       auditLog,
		logger:    logger.OrNop(log),
		metrics:   metrics.NopSink{},
	}, nil
}

// SetMetricsSink configures the sink receiving suggestion and decision records.
func (e *Engine) SetMetricsSink(sink metrics.MetricsSink) {
	e.mu.Lock()
	e.metrics = metrics.OrNop(sink)
	e.mu.Unlock()
}

// SetEventBus configures the bus receiving suggestion and decision events.
func (e *Engine) SetEventBus(bus eventbus.EventBus) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
}

// AuditLog returns the retained audit entries, oldest first.
func (e *Engine) AuditLog() []model.AuditEntry { return e.log.Entries() }

// Audit exposes the underlying log for queries.
func (e *Engine) Audit() *audit.Log { return e.log }

// GenerateSuggestions ranks drivers for every load. Loads without a
// suggestion are reported as unprocessed. Each suggestion is recorded in
// the audit log; an audit failure aborts the call.
func (e *Engine) GenerateSuggestions(ctx context.Context, snap model.Snapshot) (model.AutomationResult, error) {
	start := time.Now()
	if err := snap.Validate(); err != nil {
		return model.AutomationResult{}, fmt.Errorf("assistant: %w", err)
	}
	e.mu.RLock()
	sink, bus := e.metrics, e.bus
	e.mu.RUnlock()

	loads := model.SortLoads(snap.Loads)
	trucks := model.PairTrucks(snap.Drivers, snap.Trucks)
	byLoad := make(map[string][]model.AutomationSuggestion, len(loads))
	backend := ""

	if e.cfg.UseOptimization && len(loads) > 0 {
		b, sugs := e.optimizerSuggestions(ctx, snap, loads)
		backend = b
		for _, s := range sugs {
			byLoad[s.LoadID] = append(byLoad[s.LoadID], s)
		}
	}

	res := model.AutomationResult{
		Suggestions:      []model.AutomationSuggestion{},
		UnprocessedLoads: []string{},
	}
	for _, l := range loads {
		if err := ctx.Err(); err != nil {
			return model.AutomationResult{}, fmt.Errorf("assistant: %w", err)
		}
		sugs, ok := byLoad[l.ID]
		if !ok {
			sugs = e.ruleSuggestions(l, snap.Drivers, trucks)
		}
		if len(sugs) == 0 {
			res.UnprocessedLoads = append(res.UnprocessedLoads, l.ID)
			continue
		}
		res.Suggestions = append(res.Suggestions, sugs...)
	}

	for _, s := range res.Suggestions {
		if _, err := e.log.Append(ctx, model.AuditEntry{
			Action:       model.AuditSuggestionGenerated,
			LoadID:       s.LoadID,
			DriverID:     s.DriverID,
			UserID:       SystemUser,
			SuggestionID: s.ID,
			Reason:       s.Reason,
			Metadata: map[string]string{
				"confidence": strconv.FormatFloat(s.Confidence, 'f', 4, 64),
				"source":     string(s.Source),
			},
		}); err != nil {
			return model.AutomationResult{}, fmt.Errorf("assistant: record suggestion %s: %w", s.ID, err)
		}
		suggestionsTotal.WithLabelValues(string(s.Source)).Inc()
	}

	res.Metadata = model.AutomationMetadata{
		TotalLoads:        len(loads),
		SuggestedLoads:    len(loads) - len(res.UnprocessedLoads),
		ExecutionTime:     time.Since(start),
		Backend:           backend,
		AverageConfidence: averageConfidence(res.Suggestions),
	}
	e.record(sink, bus, res, start)
	e.logger.Infof("suggested %d/%d loads", res.Metadata.SuggestedLoads, res.Metadata.TotalLoads)
	return res, nil
}

func (e *Engine) optimizerSuggestions(ctx context.Context, snap model.Snapshot, loads []model.Load) (string, []model.AutomationSuggestion) {
	out, err := e.optimizer.Optimize(ctx, optimizer.Request{
		Loads:       loads,
		Drivers:     snap.Drivers,
		Trucks:      snap.Trucks,
		Target:      e.cfg.Objective,
		Backend:     e.cfg.Backend,
		ProblemType: e.cfg.ProblemType,
	})
	if err != nil {
		e.logger.Warnf("optimizer failed, continuing with rule scoring: %v", err)
		return "", nil
	}
	drivers := make(map[string]model.Driver, len(snap.Drivers))
	for _, d := range snap.Drivers {
		drivers[d.ID] = d
	}
	byID := make(map[string]model.Load, len(loads))
	for _, l := range loads {
		byID[l.ID] = l
	}
	factors := []string{fmt.Sprintf("optimized by %s", out.Metadata.Backend)}
	if out.Metadata.FallbackUsed {
		factors = append(factors, fmt.Sprintf("fallback from %s", out.Metadata.RequestedBackend))
	}
	sugs := make([]model.AutomationSuggestion, 0, len(out.Assignments))
	for _, a := range out.Assignments {
		l := byID[a.LoadID]
		sugs = append(sugs, model.AutomationSuggestion{
			ID:            SuggestionID(a.LoadID, a.DriverID, model.SourceOptimizer),
			LoadID:        a.LoadID,
			DriverID:      a.DriverID,
			TruckID:       a.TruckID,
			Confidence:    out.Metadata.Confidence,
			Score:         out.Metadata.Confidence * 100,
			Factors:       append([]string(nil), factors...),
			Reason:        fmt.Sprintf("optimizer assignment, estimated cost %.2f", a.EstimatedCost),
			Priority:      l.Priority,
			DistanceMiles: model.DistanceMiles(drivers[a.DriverID].Location, l.Pickup),
			Source:        model.SourceOptimizer,
		})
	}
	return out.Metadata.Backend, sugs
}

// ruleSuggestions scores every driver for l and keeps the best MaxPerLoad
// above the confidence threshold. Ties break by distance, then driver ID.
func (e *Engine) ruleSuggestions(l model.Load, drivers []model.Driver, trucks map[string]model.Truck) []model.AutomationSuggestion {
	var sugs []model.AutomationSuggestion
	for _, d := range drivers {
		s := ScoreCandidate(l, d)
		if !s.Eligible || s.Confidence() <= e.cfg.MinConfidence {
			continue
		}
		sugs = append(sugs, model.AutomationSuggestion{
			ID:            SuggestionID(l.ID, d.ID, model.SourceRules),
			LoadID:        l.ID,
			DriverID:      d.ID,
			TruckID:       trucks[d.ID].ID,
			Confidence:    s.Confidence(),
			Score:         s.Total,
			Factors:       s.Factors(),
			Reason:        fmt.Sprintf("rule-based score %.0f/100", s.Total),
			Priority:      l.Priority,
			DistanceMiles: s.Distance,
			Source:        model.SourceRules,
		})
	}
	sort.SliceStable(sugs, func(i, j int) bool {
		if sugs[i].Score != sugs[j].Score {
			return sugs[i].Score > sugs[j].Score
		}
		if sugs[i].DistanceMiles != sugs[j].DistanceMiles {
			return sugs[i].DistanceMiles < sugs[j].DistanceMiles
		}
		return sugs[i].DriverID < sugs[j].DriverID
	})
	if len(sugs) > e.cfg.MaxPerLoad {
		sugs = sugs[:e.cfg.MaxPerLoad]
	}
	return sugs
}

func (e *Engine) record(sink metrics.MetricsSink, bus eventbus.EventBus, res model.AutomationResult, start time.Time) {
	if err := sink.RecordSuggestions(metrics.SuggestionRecord{
		TotalLoads:        res.Metadata.TotalLoads,
		SuggestedLoads:    res.Metadata.SuggestedLoads,
		AverageConfidence: res.Metadata.AverageConfidence,
		Backend:           res.Metadata.Backend,
		Duration:          res.Metadata.ExecutionTime,
		Time:              start,
	}); err != nil {
		e.logger.Errorf("metrics error: %v", err)
	}
	if bus != nil {
		bus.Publish(events.SuggestionEvent{
			TotalLoads:        res.Metadata.TotalLoads,
			SuggestedLoads:    res.Metadata.SuggestedLoads,
			AverageConfidence: res.Metadata.AverageConfidence,
			Backend:           res.Metadata.Backend,
		})
	}
}

func averageConfidence(sugs []model.AutomationSuggestion) float64 {
	if len(sugs) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range sugs {
		total += s.Confidence
	}
	return total / float64(len(sugs))
}
