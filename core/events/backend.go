package events

import "github.com/kilianp07/fleetdispatch/core/model"

// Backend actions.
const (
	BackendAttempt  = "attempt"
	BackendSkipped  = "skipped"
	BackendFailure  = "failure"
	BackendFallback = "fallback"
	BackendSuccess  = "success"
)

// BackendEvent is emitted by the backend manager for each step of a solve.
type BackendEvent struct {
	Backend     string
	Requested   string
	ProblemType model.ProblemType
	Action      string
	Err         error
}
