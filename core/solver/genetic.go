package solver

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// GeneticConfig tunes the genetic search.
type GeneticConfig struct {
	PopulationSize         int           `json:"population_size"`
	MutationRate           float64       `json:"mutation_rate"`
	CrossoverRate          float64       `json:"crossover_rate"`
	Generations            int           `json:"generations"`
	SuperpositionSelection bool          `json:"superposition_selection"`
	Seed                   int64         `json:"seed"`
	TimeLimit              time.Duration `json:"time_limit"`
}

// DefaultGeneticConfig returns the standard genetic parameters.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		PopulationSize:         50,
		MutationRate:           0.1,
		CrossoverRate:          0.8,
		Generations:            100,
		SuperpositionSelection: true,
		Seed:                   DefaultSeed,
	}
}

func (c GeneticConfig) normalize() GeneticConfig {
	def := DefaultGeneticConfig()
	if c.PopulationSize < 2 {
		c.PopulationSize = def.PopulationSize
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		c.MutationRate = def.MutationRate
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		c.CrossoverRate = def.CrossoverRate
	}
	if c.Generations <= 0 {
		c.Generations = def.Generations
	}
	return c
}

// GeneticSolver evolves a population of assignment genomes.
type GeneticSolver struct {
	cfg GeneticConfig
}

// NewGeneticSolver returns a solver using cfg; zero fields take defaults.
func NewGeneticSolver(cfg GeneticConfig) *GeneticSolver {
	return &GeneticSolver{cfg: cfg.normalize()}
}

func (s *GeneticSolver) Name() string { return "genetic" }

func (s *GeneticSolver) Supports(t model.ProblemType) bool { return supportsAll(t) }

// Config returns the effective configuration.
func (s *GeneticSolver) Config() GeneticConfig { return s.cfg }

type individual struct {
	genome []int
	cost   float64
}

// Solve evolves the population for the configured number of generations and
// returns the best individual ever seen.
func (s *GeneticSolver) Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	if !s.Supports(p.Type) {
		return model.OptimizationSolution{}, &UnsupportedProblemTypeError{Solver: s.Name(), Type: p.Type}
	}
	start := time.Now()
	ev := newEvaluator(p)
	rng := newRand(s.cfg.Seed)
	rc := newRunControl(ctx, s.cfg.TimeLimit)

	pop := s.initialPopulation(ev, rng)
	best := individual{genome: append([]int(nil), pop[0].genome...), cost: pop[0].cost}

	generations := 0
	term := model.TerminationCompleted
	for ev.nTasks > 0 && generations < s.cfg.Generations {
		if why, stop := rc.stopped(); stop {
			term = why
			break
		}
		generations++

		parents := s.selectParents(pop, rng)
		offspring := s.breed(ev, parents, s.cfg.PopulationSize-len(parents), rng)
		pop = append(parents, offspring...)
		sortPopulation(pop)
		if len(pop) > s.cfg.PopulationSize {
			pop = pop[:s.cfg.PopulationSize]
		}
		if pop[0].cost < best.cost {
			best = individual{genome: append([]int(nil), pop[0].genome...), cost: pop[0].cost}
		}
	}

	sol := ev.solution(best.genome)
	sol.Metadata.Solver = s.Name()
	sol.Metadata.Iterations = generations
	sol.Metadata.Termination = term
	sol.Metadata.ExecutionTime = time.Since(start)
	return sol, nil
}

// initialPopulation seeds the greedy genome and fills the rest randomly.
func (s *GeneticSolver) initialPopulation(ev *evaluator, rng *rand.Rand) []individual {
	pop := make([]individual, 0, s.cfg.PopulationSize)
	g := ev.greedy()
	pop = append(pop, individual{genome: g, cost: ev.cost(g)})
	for len(pop) < s.cfg.PopulationSize {
		g := ev.random(rng)
		pop = append(pop, individual{genome: g, cost: ev.cost(g)})
	}
	sortPopulation(pop)
	return pop
}

// selectParents keeps half of the sorted population. Superposition selection
// samples survivors without replacement with weight 1/(1+cost-min); the
// elite is always kept.
func (s *GeneticSolver) selectParents(pop []individual, rng *rand.Rand) []individual {
	keep := len(pop) / 2
	if keep < 2 {
		keep = len(pop)
	}
	if !s.cfg.SuperpositionSelection {
		return append([]individual(nil), pop[:keep]...)
	}
	minCost := pop[0].cost
	pool := append([]individual(nil), pop[1:]...)
	weights := make([]float64, len(pool))
	for i, ind := range pool {
		weights[i] = 1 / (1 + ind.cost - minCost)
	}
	out := make([]individual, 0, keep)
	out = append(out, pop[0])
	for len(out) < keep && len(pool) > 0 {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		r := rng.Float64() * total
		k := len(pool) - 1
		for i, w := range weights {
			r -= w
			if r <= 0 {
				k = i
				break
			}
		}
		out = append(out, pool[k])
		pool = append(pool[:k], pool[k+1:]...)
		weights = append(weights[:k], weights[k+1:]...)
	}
	return out
}

// breed pairs consecutive parents, cycling through them until want children
// exist, and applies one-point crossover and mutation.
func (s *GeneticSolver) breed(ev *evaluator, parents []individual, want int, rng *rand.Rand) []individual {
	out := make([]individual, 0, want)
	if len(parents) < 2 {
		return out
	}
	for i := 0; len(out) < want; i += 2 {
		a := append([]int(nil), parents[i%len(parents)].genome...)
		b := append([]int(nil), parents[(i+1)%len(parents)].genome...)
		if ev.nTasks > 1 && rng.Float64() < s.cfg.CrossoverRate {
			cut := 1 + rng.Intn(ev.nTasks-1)
			for k := cut; k < ev.nTasks; k++ {
				a[k], b[k] = b[k], a[k]
			}
		}
		for _, child := range [][]int{a, b} {
			if len(out) == want {
				break
			}
			for k := range child {
				if rng.Float64() < s.cfg.MutationRate {
					child[k] = ev.randomGene(k, rng)
				}
			}
			ev.repair(child)
			out = append(out, individual{genome: child, cost: ev.cost(child)})
		}
	}
	return out
}

func sortPopulation(pop []individual) {
	sort.SliceStable(pop, func(i, j int) bool { return pop[i].cost < pop[j].cost })
}
