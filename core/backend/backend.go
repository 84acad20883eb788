// Package backend runs optimization problems on interchangeable compute
// backends and falls back to the default backend when the preferred one is
// missing, unavailable, over quota, or fails.
//
// Available backends:
//   - QuantumInspiredBackend: annealing, genetic or hybrid heuristics (default)
//   - LPBackend: exact assignment through the simplex method
//   - HardwareBackend: provider stubs emulated on a classical backend
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/solver"
)

// Backend names.
const (
	QuantumInspired   = "quantum_inspired"
	IBMQuantum        = "ibm_quantum"
	AWSBraket         = "aws_braket"
	AzureQuantum      = "azure_quantum"
	LinearProgramming = "linear_programming"
)

var (
	// ErrUnsupportedProblemType is returned when a backend cannot handle a problem type.
	ErrUnsupportedProblemType = solver.ErrUnsupportedProblemType
	// ErrNoBackend is wrapped when no backend in the chain produced a solution.
	ErrNoBackend = errors.New("no backend could solve the problem")
	// ErrBackendUnavailable is returned by backends that are not configured or reachable.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrQuotaExceeded is returned when a provider job quota is exhausted.
	ErrQuotaExceeded = errors.New("backend quota exceeded")
	// ErrProblemTooLarge is returned when a problem exceeds a backend's size limit.
	ErrProblemTooLarge = errors.New("problem exceeds backend size limit")
)

// Capabilities describe what a backend accepts.
type Capabilities struct {
	// MaxProblemSize bounds the number of task/agent pairs; zero means unbounded.
	MaxProblemSize     int                 `json:"max_problem_size"`
	SupportedTypes     []model.ProblemType `json:"supported_types"`
	ExecutionTimeLimit time.Duration       `json:"execution_time_limit"`
	CostPerExecution   float64             `json:"cost_per_execution"`
}

// Supports reports whether t is listed in SupportedTypes.
func (c Capabilities) Supports(t model.ProblemType) bool {
	for _, s := range c.SupportedTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Backend solves optimization problems.
type Backend interface {
	Name() string
	Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error)
	IsAvailable() bool
	Capabilities() Capabilities
}

// Attempt records why one backend of the chain did not produce a solution.
type Attempt struct {
	Backend string
	Err     error
}

// NoBackendError lists every attempt made by the manager.
type NoBackendError struct {
	Requested   string
	ProblemType model.ProblemType
	Attempts    []Attempt
}

func (e *NoBackendError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Backend, a.Err))
	}
	return fmt.Sprintf("%v (requested %q, type %q): %s", ErrNoBackend, e.Requested, e.ProblemType, strings.Join(parts, "; "))
}

// Unwrap exposes ErrNoBackend and each attempt's cause to errors.Is/As.
func (e *NoBackendError) Unwrap() []error {
	out := []error{ErrNoBackend}
	for _, a := range e.Attempts {
		if a.Err != nil {
			out = append(out, a.Err)
		}
	}
	return out
}
