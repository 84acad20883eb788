// Package solver contains the search algorithms that turn an
// OptimizationProblem into an OptimizationSolution.
//
// Available solvers:
//   - AnnealingSolver: simulated annealing with an optional tunneling term
//   - GeneticSolver: population search with optional superposition selection
//   - LPSolver: exact assignment through the gonum simplex
//
// Solvers are safe for concurrent use: configuration is read-only during a
// solve and every call builds its own random source from the configured seed.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// ErrUnsupportedProblemType is wrapped when a solver cannot handle a problem type.
var ErrUnsupportedProblemType = errors.New("unsupported problem type")

// UnsupportedProblemTypeError names the solver and the rejected type.
type UnsupportedProblemTypeError struct {
	Solver string
	Type   model.ProblemType
}

func (e *UnsupportedProblemTypeError) Error() string {
	return fmt.Sprintf("%s: %v %q", e.Solver, ErrUnsupportedProblemType, e.Type)
}

func (e *UnsupportedProblemTypeError) Unwrap() error { return ErrUnsupportedProblemType }

// Solver solves optimization problems.
type Solver interface {
	Name() string
	Supports(t model.ProblemType) bool
	Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error)
}

// DefaultSeed is the seed of the default heuristic configs, so repeated
// solves of one problem give the same answer.
const DefaultSeed int64 = 20240501

// newRand returns a seeded random source. A zero seed is replaced by a
// time-derived one.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// runControl bundles the cooperative stop conditions checked once per loop.
type runControl struct {
	ctx      context.Context
	deadline time.Time
}

func newRunControl(ctx context.Context, limit time.Duration) runControl {
	rc := runControl{ctx: ctx}
	if limit > 0 {
		rc.deadline = time.Now().Add(limit)
	}
	return rc
}

// stopped reports whether the loop must end and why.
func (r runControl) stopped() (model.Termination, bool) {
	if err := r.ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.TerminationDeadline, true
		}
		return model.TerminationCancelled, true
	}
	if !r.deadline.IsZero() && !time.Now().Before(r.deadline) {
		return model.TerminationDeadline, true
	}
	return "", false
}

func supportsAll(t model.ProblemType) bool { return t.Valid() }
