// Package optimizer translates transport snapshots (loads, drivers, trucks)
// into backend-independent optimization problems and maps the solutions
// back to TMS assignments.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/solver"
)

// Solver runs a problem on a named backend. *backend.Manager implements it.
type Solver interface {
	Solve(ctx context.Context, p model.OptimizationProblem, preferred string) (model.OptimizationSolution, error)
}

// Config holds the cost model and default limits.
type Config struct {
	CostPerMile       float64 `json:"cost_per_mile"`
	AverageSpeedMPH   float64 `json:"average_speed_mph"`
	MaxLoadsPerDriver int     `json:"max_loads_per_driver"`
	MaxDeadheadMiles  float64 `json:"max_deadhead_miles"`
	Backend           string  `json:"backend"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.CostPerMile <= 0 {
		c.CostPerMile = 2.5
	}
	if c.AverageSpeedMPH <= 0 {
		c.AverageSpeedMPH = 50
	}
	if c.MaxLoadsPerDriver <= 0 {
		c.MaxLoadsPerDriver = 3
	}
}

// Validate rejects negative limits.
func (c Config) Validate() error {
	if c.MaxDeadheadMiles < 0 {
		return fmt.Errorf("optimizer: max_deadhead_miles must be >= 0")
	}
	return nil
}

// Request is one optimization call over a snapshot.
type Request struct {
	Loads   []model.Load
	Drivers []model.Driver
	Trucks  []model.Truck
	// Target is the objective to minimize; empty means composite.
	Target  model.ObjectiveType
	Weights map[model.ObjectiveType]float64
	// Backend is the preferred backend; empty uses the configured one.
	Backend     string
	ProblemType model.ProblemType
	// MaxLoadsPerDriver overrides Config.MaxLoadsPerDriver when positive.
	MaxLoadsPerDriver int
	AllowMultiple     bool
	// MaxDeadheadMiles overrides Config.MaxDeadheadMiles when positive.
	MaxDeadheadMiles float64
	// Now, when set, drops loads whose window ended before it; they are
	// reported as unassigned.
	Now time.Time
}

// TMSAssignment is an optimizer assignment expressed in transport terms.
type TMSAssignment struct {
	LoadID        string           `json:"load_id"`
	DriverID      string           `json:"driver_id"`
	TruckID       string           `json:"truck_id"`
	Route         []model.Location `json:"route"`
	DistanceMiles float64          `json:"distance_miles"`
	EstimatedCost float64          `json:"estimated_cost"`
	EstimatedTime time.Duration    `json:"estimated_time"`
}

// Result is the output of Optimize.
type Result struct {
	Assignments        []TMSAssignment        `json:"assignments"`
	UnassignedLoads    []string               `json:"unassigned_loads"`
	UtilizationRate    float64                `json:"utilization_rate"`
	TotalCost          float64                `json:"total_cost"`
	TotalDistanceMiles float64                `json:"total_distance_miles"`
	Metadata           model.SolutionMetadata `json:"metadata"`
}

// OptimizationError wraps a failed optimization with its context.
type OptimizationError struct {
	Stage       string
	Backend     string
	ProblemType model.ProblemType
	Err         error
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("optimize %s (backend %q, type %q): %v", e.Stage, e.Backend, e.ProblemType, e.Err)
}

func (e *OptimizationError) Unwrap() error { return e.Err }

// Optimizer builds problems and delegates solving to a Solver.
type Optimizer struct {
	solver Solver
	cfg    Config
	logger logger.Logger
}

// New returns an Optimizer.
func New(s Solver, cfg Config, log logger.Logger) (*Optimizer, error) {
	if s == nil {
		return nil, errors.New("optimizer: nil solver")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{solver: s, cfg: cfg, logger: logger.OrNop(log)}, nil
}

// Optimize validates the snapshot, builds the problem, solves it and maps
// the solution back. Failures are returned as *OptimizationError.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (Result, error) {
	pt := req.ProblemType
	if pt == "" {
		pt = model.ProblemLoadAssignment
	}
	preferred := req.Backend
	if preferred == "" {
		preferred = o.cfg.Backend
	}
	fail := func(stage string, err error) (Result, error) {
		return Result{}, &OptimizationError{Stage: stage, Backend: preferred, ProblemType: pt, Err: err}
	}

	if err := model.ValidateSnapshot(req.Loads, req.Drivers, req.Trucks); err != nil {
		return fail("validate", err)
	}
	if !pt.Valid() {
		return fail("validate", &solver.UnsupportedProblemTypeError{Solver: "optimizer", Type: pt})
	}
	total := len(req.Loads)
	var expired []string
	req.Loads, expired = splitExpired(req.Loads, req.Now)
	if len(req.Loads) == 0 {
		return Result{Assignments: []TMSAssignment{}, UnassignedLoads: append([]string{}, expired...)}, nil
	}

	problem, trucks := o.BuildProblem(req)
	problem.Type = pt
	sol, err := o.solver.Solve(ctx, problem, preferred)
	if err != nil {
		o.logger.Errorf("optimization failed: %v", err)
		return fail("solve", err)
	}
	res := o.buildResult(req, pt, sol, trucks)
	if len(expired) > 0 {
		o.logger.Debugf("skipped %d loads with expired windows", len(expired))
		res.UnassignedLoads = append(res.UnassignedLoads, expired...)
		res.UtilizationRate = float64(len(res.Assignments)) / float64(total)
	}
	o.logger.Infof("optimized %d/%d loads on %s", len(res.Assignments), len(req.Loads), sol.Metadata.Backend)
	return res, nil
}

func (o *Optimizer) buildResult(req Request, pt model.ProblemType, sol model.OptimizationSolution, trucks map[string]model.Truck) Result {
	loads := make(map[string]model.Load, len(req.Loads))
	for _, l := range req.Loads {
		loads[l.ID] = l
	}
	drivers := make(map[string]model.Driver, len(req.Drivers))
	for _, d := range req.Drivers {
		drivers[d.ID] = d
	}

	res := Result{Assignments: []TMSAssignment{}, UnassignedLoads: []string{}, Metadata: sol.Metadata}
	done := make(map[string]bool, len(sol.Assignments))
	for _, a := range sol.Assignments {
		l, ok := loads[a.LoadID]
		d, okD := drivers[a.DriverID]
		if !ok || !okD || done[a.LoadID] {
			continue
		}
		done[a.LoadID] = true
		route := []model.Location{l.Pickup, l.Delivery}
		if pt == model.ProblemVehicleRouting {
			route = []model.Location{d.Location, l.Pickup, l.Delivery}
		}
		truckID := a.TruckID
		if truckID == "" {
			truckID = trucks[a.DriverID].ID
		}
		ta := TMSAssignment{
			LoadID:        l.ID,
			DriverID:      d.ID,
			TruckID:       truckID,
			Route:         route,
			DistanceMiles: routeMiles(route),
			EstimatedCost: a.EstimatedCost,
			EstimatedTime: a.EstimatedTime,
		}
		res.Assignments = append(res.Assignments, ta)
		res.TotalCost += ta.EstimatedCost
		res.TotalDistanceMiles += ta.DistanceMiles
	}
	for _, l := range req.Loads {
		if !done[l.ID] {
			res.UnassignedLoads = append(res.UnassignedLoads, l.ID)
		}
	}
	n := len(req.Loads)
	if n < 1 {
		n = 1
	}
	res.UtilizationRate = float64(len(res.Assignments)) / float64(n)
	return res
}

// splitExpired separates loads whose window ended before now. A zero now
// keeps every load.
func splitExpired(loads []model.Load, now time.Time) (live []model.Load, expired []string) {
	if now.IsZero() {
		return loads, nil
	}
	live = make([]model.Load, 0, len(loads))
	for _, l := range loads {
		if l.TimeWindow != nil && l.TimeWindow.End.Before(now) {
			expired = append(expired, l.ID)
			continue
		}
		live = append(live, l)
	}
	return live, expired
}

func routeMiles(route []model.Location) float64 {
	total := 0.0
	for i := 1; i < len(route); i++ {
		total += model.DistanceMiles(route[i-1], route[i])
	}
	return total
}
