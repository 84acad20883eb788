package solver

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

const (
	defaultCostPerMile = 2.5
	defaultSpeedMPH    = 50.0

	// unassignedPenalty must dominate any realistic pair cost so that a
	// feasible assignment always beats leaving a task open.
	unassignedPenalty = 1e5
	priorityPenalty   = 1e4
)

// evaluator is the compiled form of a problem shared by every solver.
type evaluator struct {
	problem  model.OptimizationProblem
	nTasks   int
	nAgents  int
	feasible [][]bool
	pairCost [][]float64
	miles    [][]float64
	hours    [][]float64
	money    [][]float64
	capacity []int
	penalty  []float64
	// order lists task indices by descending priority; repair keeps
	// higher-priority tasks when an agent is over its limit.
	order      []int
	candidates [][]int
}

func newEvaluator(p model.OptimizationProblem) *evaluator {
	nt, na := len(p.Tasks), len(p.Agents)
	e := &evaluator{
		problem:    p,
		nTasks:     nt,
		nAgents:    na,
		feasible:   make([][]bool, nt),
		pairCost:   make([][]float64, nt),
		miles:      make([][]float64, nt),
		hours:      make([][]float64, nt),
		money:      make([][]float64, nt),
		capacity:   make([]int, na),
		penalty:    make([]float64, nt),
		order:      make([]int, nt),
		candidates: make([][]int, nt),
	}
	costPerMile := p.Parameters.CostPerMile
	if costPerMile <= 0 {
		costPerMile = defaultCostPerMile
	}
	speed := p.Parameters.AverageSpeedMPH
	if speed <= 0 {
		speed = defaultSpeedMPH
	}
	weights := p.Objective.ResolvedWeights()

	taskIdx := make(map[string]int, nt)
	agentIdx := make(map[string]int, na)
	for j, a := range p.Agents {
		agentIdx[a.ID] = j
		e.capacity[j] = 1
		if p.Parameters.AllowMultiplePerAgent {
			e.capacity[j] = a.MaxTasks
			if e.capacity[j] <= 0 {
				e.capacity[j] = nt
			}
		}
	}
	for i, t := range p.Tasks {
		taskIdx[t.ID] = i
		e.order[i] = i
		e.penalty[i] = unassignedPenalty + priorityPenalty*float64(t.Priority)
		e.feasible[i] = make([]bool, na)
		e.pairCost[i] = make([]float64, na)
		e.miles[i] = make([]float64, na)
		e.hours[i] = make([]float64, na)
		e.money[i] = make([]float64, na)
		loaded := model.Haversine(t.Origin, t.Destination)
		for j, a := range p.Agents {
			e.feasible[i][j] = true
			m := model.Haversine(a.Location, t.Origin) + loaded
			h := m / speed
			cost := m * costPerMile
			util := 1.0
			if a.Capacity > 0 {
				util = math.Max(0, 1-t.Demand/a.Capacity)
			}
			e.miles[i][j] = m
			e.hours[i][j] = h
			e.money[i][j] = cost
			// Terms are scaled to comparable magnitudes: dollars, miles,
			// minutes and utilization percentage points.
			e.pairCost[i][j] = weights[model.ObjectiveCost]*cost +
				weights[model.ObjectiveDistance]*m +
				weights[model.ObjectiveTime]*h*60 +
				weights[model.ObjectiveUtilization]*util*100
		}
	}
	for _, c := range p.Constraints {
		i, ok := taskIdx[c.TaskID]
		if !ok || c.Satisfied() {
			continue
		}
		if c.AgentID == "" {
			for j := range e.feasible[i] {
				e.feasible[i][j] = false
			}
			continue
		}
		if j, ok := agentIdx[c.AgentID]; ok {
			e.feasible[i][j] = false
		}
	}
	for i := range p.Tasks {
		for j := range p.Agents {
			if e.feasible[i][j] {
				e.candidates[i] = append(e.candidates[i], j)
			}
		}
	}
	sort.SliceStable(e.order, func(a, b int) bool {
		return p.Tasks[e.order[a]].Priority > p.Tasks[e.order[b]].Priority
	})
	return e
}

// repair drops infeasible genes and assignments beyond an agent's limit,
// visiting tasks by priority.
func (e *evaluator) repair(genome []int) {
	used := make([]int, e.nAgents)
	for _, i := range e.order {
		j := genome[i]
		if j < 0 {
			continue
		}
		if j >= e.nAgents || !e.feasible[i][j] || used[j] >= e.capacity[j] {
			genome[i] = -1
			continue
		}
		used[j]++
	}
}

// cost assumes a repaired genome.
func (e *evaluator) cost(genome []int) float64 {
	total := 0.0
	for i, j := range genome {
		if j < 0 {
			total += e.penalty[i]
			continue
		}
		total += e.pairCost[i][j]
	}
	return total
}

// greedy assigns tasks by priority to their cheapest feasible agent.
func (e *evaluator) greedy() []int {
	genome := make([]int, e.nTasks)
	used := make([]int, e.nAgents)
	for i := range genome {
		genome[i] = -1
	}
	for _, i := range e.order {
		best, bestCost := -1, math.MaxFloat64
		for _, j := range e.candidates[i] {
			if used[j] >= e.capacity[j] {
				continue
			}
			if e.pairCost[i][j] < bestCost {
				best, bestCost = j, e.pairCost[i][j]
			}
		}
		if best >= 0 {
			genome[i] = best
			used[best]++
		}
	}
	return genome
}

// random builds a repaired genome from random feasible choices.
func (e *evaluator) random(rng *rand.Rand) []int {
	genome := make([]int, e.nTasks)
	for i := range genome {
		genome[i] = e.randomGene(i, rng)
	}
	e.repair(genome)
	return genome
}

// randomGene picks a feasible agent for task i, or -1 one time in ten.
func (e *evaluator) randomGene(i int, rng *rand.Rand) int {
	cands := e.candidates[i]
	if len(cands) == 0 || rng.Float64() < 0.1 {
		return -1
	}
	return cands[rng.Intn(len(cands))]
}

func (e *evaluator) assigned(genome []int) int {
	n := 0
	for _, j := range genome {
		if j >= 0 {
			n++
		}
	}
	return n
}

// confidence grows with the share of tasks covered.
func (e *evaluator) confidence(genome []int) float64 {
	if e.nTasks == 0 {
		return 1
	}
	return 0.95 * float64(e.assigned(genome)) / float64(e.nTasks)
}

// solution converts a repaired genome into the public result.
func (e *evaluator) solution(genome []int) model.OptimizationSolution {
	sol := model.OptimizationSolution{Assignments: []model.Assignment{}}
	for i, j := range genome {
		if j < 0 {
			continue
		}
		t, a := e.problem.Tasks[i], e.problem.Agents[j]
		route := []model.Point{t.Origin, t.Destination}
		if e.problem.Type == model.ProblemVehicleRouting {
			route = []model.Point{a.Location, t.Origin, t.Destination}
		}
		sol.Assignments = append(sol.Assignments, model.Assignment{
			LoadID:        t.ID,
			DriverID:      a.ID,
			TruckID:       a.TruckID,
			Route:         route,
			EstimatedCost: e.money[i][j],
			EstimatedTime: time.Duration(e.hours[i][j] * float64(time.Hour)),
		})
	}
	sol.Cost = e.cost(genome)
	sol.Metadata.Confidence = e.confidence(genome)
	return sol
}
