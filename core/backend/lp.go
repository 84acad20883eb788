package backend

import (
	"context"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/solver"
)

// LPConfig configures the exact backend.
type LPConfig struct {
	Tolerance          float64       `json:"tolerance"`
	MaxProblemSize     int           `json:"max_problem_size"`
	ExecutionTimeLimit time.Duration `json:"execution_time_limit"`
}

// DefaultLPConfig keeps the dense simplex tableau to a tractable size.
func DefaultLPConfig() LPConfig {
	return LPConfig{Tolerance: 1e-7, MaxProblemSize: 2500, ExecutionTimeLimit: 10 * time.Second}
}

// LPBackend solves assignment problems exactly.
type LPBackend struct {
	cfg    LPConfig
	solver *solver.LPSolver
}

// NewLPBackend returns an exact backend.
func NewLPBackend(cfg LPConfig) *LPBackend {
	s := solver.NewLPSolver()
	if cfg.Tolerance > 0 {
		s.Tolerance = cfg.Tolerance
	}
	return &LPBackend{cfg: cfg, solver: s}
}

func (b *LPBackend) Name() string { return LinearProgramming }

func (b *LPBackend) IsAvailable() bool { return true }

func (b *LPBackend) Capabilities() Capabilities {
	return Capabilities{
		MaxProblemSize:     b.cfg.MaxProblemSize,
		SupportedTypes:     []model.ProblemType{model.ProblemLoadAssignment, model.ProblemResourceAllocation},
		ExecutionTimeLimit: b.cfg.ExecutionTimeLimit,
	}
}

func (b *LPBackend) Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	sol, err := b.solver.Solve(ctx, p)
	if err != nil {
		return model.OptimizationSolution{}, err
	}
	sol.Metadata.Backend = LinearProgramming
	return sol, nil
}
