package solver

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// AnnealingConfig tunes the simulated annealing search.
type AnnealingConfig struct {
	InitialTemperature float64       `json:"initial_temperature"`
	CoolingRate        float64       `json:"cooling_rate"`
	MinTemperature     float64       `json:"min_temperature"`
	MaxIterations      int           `json:"max_iterations"`
	QuantumTunneling   bool          `json:"quantum_tunneling"`
	TunnelWeight       float64       `json:"tunnel_weight"`
	Seed               int64         `json:"seed"`
	TimeLimit          time.Duration `json:"time_limit"`
}

// DefaultAnnealingConfig returns the standard schedule with tunneling enabled.
func DefaultAnnealingConfig() AnnealingConfig {
	return AnnealingConfig{
		InitialTemperature: 1000,
		CoolingRate:        0.95,
		MinTemperature:     1,
		MaxIterations:      1000,
		QuantumTunneling:   true,
		TunnelWeight:       0.1,
		Seed:               DefaultSeed,
	}
}

// normalize replaces out-of-range values with the defaults.
func (c AnnealingConfig) normalize() AnnealingConfig {
	def := DefaultAnnealingConfig()
	if c.InitialTemperature <= 0 {
		c.InitialTemperature = def.InitialTemperature
	}
	if c.CoolingRate <= 0 || c.CoolingRate >= 1 {
		c.CoolingRate = def.CoolingRate
	}
	if c.MinTemperature <= 0 {
		c.MinTemperature = def.MinTemperature
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.TunnelWeight < 0 {
		c.TunnelWeight = 0
	}
	return c
}

// AnnealingSolver searches assignments with simulated annealing. With
// QuantumTunneling enabled an extra acceptance term lets the search cross
// higher cost barriers than classical annealing would.
type AnnealingSolver struct {
	cfg AnnealingConfig
}

// NewAnnealingSolver returns a solver using cfg; zero fields take defaults.
func NewAnnealingSolver(cfg AnnealingConfig) *AnnealingSolver {
	return &AnnealingSolver{cfg: cfg.normalize()}
}

func (s *AnnealingSolver) Name() string { return "annealing" }

func (s *AnnealingSolver) Supports(t model.ProblemType) bool { return supportsAll(t) }

// Config returns the effective configuration.
func (s *AnnealingSolver) Config() AnnealingConfig { return s.cfg }

// Solve runs the annealing loop and returns the best solution encountered.
// Cancellation and the time limit end the loop early with the best-so-far.
func (s *AnnealingSolver) Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	if !s.Supports(p.Type) {
		return model.OptimizationSolution{}, &UnsupportedProblemTypeError{Solver: s.Name(), Type: p.Type}
	}
	start := time.Now()
	ev := newEvaluator(p)
	rng := newRand(s.cfg.Seed)
	rc := newRunControl(ctx, s.cfg.TimeLimit)

	current := ev.greedy()
	currentCost := ev.cost(current)
	best := append([]int(nil), current...)
	bestCost := currentCost

	temp := s.cfg.InitialTemperature
	iterations := 0
	term := model.TerminationCompleted
	for ev.nTasks > 0 {
		if iterations >= s.cfg.MaxIterations {
			break
		}
		if temp < s.cfg.MinTemperature {
			term = model.TerminationTemperatureFloor
			break
		}
		if why, stop := rc.stopped(); stop {
			term = why
			break
		}
		iterations++

		candidate := s.neighbor(ev, current, rng)
		candidateCost := ev.cost(candidate)
		if s.accept(candidateCost-currentCost, temp, rng) {
			current, currentCost = candidate, candidateCost
			if currentCost < bestCost {
				best = append(best[:0], current...)
				bestCost = currentCost
			}
		}
		temp *= s.cfg.CoolingRate
	}

	sol := ev.solution(best)
	sol.Metadata.Solver = s.Name()
	sol.Metadata.Iterations = iterations
	sol.Metadata.Termination = term
	sol.Metadata.ExecutionTime = time.Since(start)
	return sol, nil
}

// neighbor applies one random move to a copy of genome: reassign a task,
// swap the agents of two tasks, or unassign a task.
func (s *AnnealingSolver) neighbor(ev *evaluator, genome []int, rng *rand.Rand) []int {
	next := append([]int(nil), genome...)
	i := rng.Intn(ev.nTasks)
	r := rng.Float64()
	switch {
	case r < 0.5:
		if cands := ev.candidates[i]; len(cands) > 0 {
			next[i] = cands[rng.Intn(len(cands))]
		}
	case r < 0.8 && ev.nTasks > 1:
		k := rng.Intn(ev.nTasks - 1)
		if k >= i {
			k++
		}
		next[i], next[k] = next[k], next[i]
	default:
		next[i] = -1
	}
	ev.repair(next)
	return next
}

// accept implements the Metropolis criterion plus the tunneling term.
func (s *AnnealingSolver) accept(delta, temp float64, rng *rand.Rand) bool {
	if delta <= 0 {
		return true
	}
	p := math.Exp(-delta / temp)
	if s.cfg.QuantumTunneling {
		p += s.cfg.TunnelWeight * math.Exp(-delta/(10*temp))
	}
	if p > 1 {
		p = 1
	}
	return rng.Float64() < p
}
