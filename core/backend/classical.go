package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/solver"
)

// Algorithm selects the heuristic run by the quantum-inspired backend.
type Algorithm string

const (
	AlgorithmAnnealing Algorithm = "annealing"
	AlgorithmGenetic   Algorithm = "genetic"
	// AlgorithmHybrid runs both heuristics and keeps the cheaper solution.
	AlgorithmHybrid Algorithm = "hybrid"
)

// QuantumInspiredConfig configures the default backend.
type QuantumInspiredConfig struct {
	Algorithm          Algorithm              `json:"algorithm"`
	Annealing          solver.AnnealingConfig `json:"annealing"`
	Genetic            solver.GeneticConfig   `json:"genetic"`
	MaxProblemSize     int                    `json:"max_problem_size"`
	ExecutionTimeLimit time.Duration          `json:"execution_time_limit"`
}

// DefaultQuantumInspiredConfig returns annealing with the standard schedules.
func DefaultQuantumInspiredConfig() QuantumInspiredConfig {
	return QuantumInspiredConfig{
		Algorithm:          AlgorithmAnnealing,
		Annealing:          solver.DefaultAnnealingConfig(),
		Genetic:            solver.DefaultGeneticConfig(),
		MaxProblemSize:     100000,
		ExecutionTimeLimit: 30 * time.Second,
	}
}

// QuantumInspiredBackend runs the classical heuristics locally. It is always
// available and supports every problem type.
type QuantumInspiredBackend struct {
	cfg       QuantumInspiredConfig
	annealing *solver.AnnealingSolver
	genetic   *solver.GeneticSolver
}

// NewQuantumInspiredBackend validates the algorithm and builds the solvers.
func NewQuantumInspiredBackend(cfg QuantumInspiredConfig) (*QuantumInspiredBackend, error) {
	switch cfg.Algorithm {
	case "":
		cfg.Algorithm = AlgorithmAnnealing
	case AlgorithmAnnealing, AlgorithmGenetic, AlgorithmHybrid:
	default:
		return nil, fmt.Errorf("quantum_inspired: unknown algorithm %q", cfg.Algorithm)
	}
	return &QuantumInspiredBackend{
		cfg:       cfg,
		annealing: solver.NewAnnealingSolver(cfg.Annealing),
		genetic:   solver.NewGeneticSolver(cfg.Genetic),
	}, nil
}

func (b *QuantumInspiredBackend) Name() string { return QuantumInspired }

func (b *QuantumInspiredBackend) IsAvailable() bool { return true }

func (b *QuantumInspiredBackend) Capabilities() Capabilities {
	return Capabilities{
		MaxProblemSize: b.cfg.MaxProblemSize,
		SupportedTypes: []model.ProblemType{
			model.ProblemVehicleRouting,
			model.ProblemLoadAssignment,
			model.ProblemScheduling,
			model.ProblemResourceAllocation,
		},
		ExecutionTimeLimit: b.cfg.ExecutionTimeLimit,
	}
}

// Algorithm returns the configured heuristic.
func (b *QuantumInspiredBackend) Algorithm() Algorithm { return b.cfg.Algorithm }

func (b *QuantumInspiredBackend) Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	var (
		sol model.OptimizationSolution
		err error
	)
	switch b.cfg.Algorithm {
	case AlgorithmGenetic:
		sol, err = b.genetic.Solve(ctx, p)
	case AlgorithmHybrid:
		sol, err = b.hybrid(ctx, p)
	default:
		sol, err = b.annealing.Solve(ctx, p)
	}
	if err != nil {
		return model.OptimizationSolution{}, err
	}
	sol.Metadata.Backend = QuantumInspired
	return sol, nil
}

// hybrid runs both heuristics concurrently; ties go to annealing.
func (b *QuantumInspiredBackend) hybrid(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	var (
		wg         sync.WaitGroup
		ann, gen   model.OptimizationSolution
		annE, genE error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ann, annE = b.annealing.Solve(ctx, p)
	}()
	go func() {
		defer wg.Done()
		gen, genE = b.genetic.Solve(ctx, p)
	}()
	wg.Wait()

	switch {
	case annE != nil && genE != nil:
		return model.OptimizationSolution{}, annE
	case annE != nil:
		return gen, nil
	case genE != nil:
		return ann, nil
	}
	elapsed := ann.Metadata.ExecutionTime
	if gen.Metadata.ExecutionTime > elapsed {
		elapsed = gen.Metadata.ExecutionTime
	}
	best := ann
	if gen.Cost < ann.Cost {
		best = gen
	}
	best.Metadata.Solver = string(AlgorithmHybrid) + "/" + best.Metadata.Solver
	best.Metadata.ExecutionTime = elapsed
	return best, nil
}
