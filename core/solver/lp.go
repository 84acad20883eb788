package solver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// ErrLPFailed wraps simplex failures.
var ErrLPFailed = errors.New("lp solve failed")

// LPSolver solves the assignment relaxation exactly with the simplex method.
// The constraint matrix is totally unimodular so the optimum is integral.
type LPSolver struct {
	Tolerance float64
}

// NewLPSolver returns an LP solver with the default tolerance.
func NewLPSolver() *LPSolver { return &LPSolver{Tolerance: 1e-7} }

func (s *LPSolver) Name() string { return "linear_programming" }

// Supports limits the exact solver to pure assignment problems.
func (s *LPSolver) Supports(t model.ProblemType) bool {
	return t == model.ProblemLoadAssignment || t == model.ProblemResourceAllocation
}

// solveLP minimizes cᵀx subject to G x <= h and A x = b and returns x.
func solveLP(c []float64, g *mat.Dense, h []float64, a *mat.Dense, b []float64, tol float64) ([]float64, error) {
	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, tol, nil)
	if err != nil {
		return nil, err
	}
	// Convert splits each variable into positive and negative parts.
	n := len(c)
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+i]
	}
	return x, nil
}

// lpSolve points to the function used to solve the LP. Tests override it to
// simulate solver failures.
var lpSolve = solveLP

type lpPair struct{ task, agent int }

// Solve builds one binary variable per feasible pair and one slack variable
// per task that absorbs the unassigned penalty.
func (s *LPSolver) Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	if !s.Supports(p.Type) {
		return model.OptimizationSolution{}, &UnsupportedProblemTypeError{Solver: s.Name(), Type: p.Type}
	}
	if err := ctx.Err(); err != nil {
		return model.OptimizationSolution{}, err
	}
	start := time.Now()
	ev := newEvaluator(p)
	genome := make([]int, ev.nTasks)
	for i := range genome {
		genome[i] = -1
	}

	var pairs []lpPair
	for i := 0; i < ev.nTasks; i++ {
		for _, j := range ev.candidates[i] {
			pairs = append(pairs, lpPair{task: i, agent: j})
		}
	}

	iterations := 0
	term := model.TerminationCompleted
	if len(pairs) > 0 {
		x, err := s.solveWithin(ctx, ev, pairs)
		switch {
		case err != nil && ctx.Err() != nil:
			// The simplex was abandoned; the greedy start is the best known.
			genome = ev.greedy()
			term, _ = newRunControl(ctx, 0).stopped()
		case err != nil:
			return model.OptimizationSolution{}, fmt.Errorf("%w: %v", ErrLPFailed, err)
		default:
			iterations = 1
			for k, pr := range pairs {
				if x[k] >= 0.5 {
					genome[pr.task] = pr.agent
				}
			}
		}
		ev.repair(genome)
	}

	sol := ev.solution(genome)
	sol.Metadata.Solver = s.Name()
	sol.Metadata.Iterations = iterations
	sol.Metadata.Termination = term
	sol.Metadata.ExecutionTime = time.Since(start)
	return sol, nil
}

type lpOutcome struct {
	x   []float64
	err error
}

// solveWithin runs the simplex in the background and returns ctx.Err() as
// soon as ctx ends. An abandoned simplex finishes on its own and is dropped.
func (s *LPSolver) solveWithin(ctx context.Context, ev *evaluator, pairs []lpPair) ([]float64, error) {
	done := make(chan lpOutcome, 1)
	go func() {
		x, err := s.solve(ev, pairs)
		done <- lpOutcome{x: x, err: err}
	}()
	select {
	case out := <-done:
		return out.x, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *LPSolver) solve(ev *evaluator, pairs []lpPair) ([]float64, error) {
	np, nt, na := len(pairs), ev.nTasks, ev.nAgents
	n := np + nt

	c := make([]float64, n)
	for k, pr := range pairs {
		c[k] = ev.pairCost[pr.task][pr.agent]
	}
	for i := 0; i < nt; i++ {
		c[np+i] = ev.penalty[i]
	}

	// Inequalities: agent task limits, then non-negativity of every variable.
	g := mat.NewDense(na+n, n, nil)
	h := make([]float64, na+n)
	for k, pr := range pairs {
		g.Set(pr.agent, k, 1)
	}
	for j := 0; j < na; j++ {
		h[j] = float64(ev.capacity[j])
	}
	for v := 0; v < n; v++ {
		g.Set(na+v, v, -1)
	}

	// Equalities: every task is either assigned once or left to its slack.
	a := mat.NewDense(nt, n, nil)
	b := make([]float64, nt)
	for k, pr := range pairs {
		a.Set(pr.task, k, 1)
	}
	for i := 0; i < nt; i++ {
		a.Set(i, np+i, 1)
		b[i] = 1
	}

	tol := s.Tolerance
	if tol <= 0 {
		tol = 1e-7
	}
	return lpSolve(c, g, h, a, b, tol)
}
