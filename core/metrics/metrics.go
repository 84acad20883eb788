package metrics

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// SolveRecord describes one backend manager solve.
type SolveRecord struct {
	Backend     string
	Requested   string
	ProblemType model.ProblemType
	Fallback    bool
	Assignments int
	Cost        float64
	Duration    time.Duration
	Err         string
	Time        time.Time
}

// DispatchRecord describes one dispatcher pass.
type DispatchRecord struct {
	TotalLoads      int
	AssignedLoads   int
	Backend         string
	RulesApplied    []string
	PublishFailures int
	Duration        time.Duration
	Time            time.Time
}

// SuggestionRecord describes one assistant pass.
type SuggestionRecord struct {
	TotalLoads        int
	SuggestedLoads    int
	AverageConfidence float64
	Backend           string
	Duration          time.Duration
	Time              time.Time
}

// MetricsSink records engine activity for observability purposes.
type MetricsSink interface {
	RecordSolve(rec SolveRecord) error
	RecordDispatch(rec DispatchRecord) error
	RecordSuggestions(rec SuggestionRecord) error
}

// DecisionRecord captures a human decision on a suggestion.
type DecisionRecord struct {
	Action model.AuditAction
	UserID string
	Time   time.Time
}

// DecisionRecorder is implemented by sinks able to record human decisions.
type DecisionRecorder interface {
	RecordDecision(rec DecisionRecord) error
}

// FallbackRecord captures a backend fallback.
type FallbackRecord struct {
	Requested string
	Backend   string
	Reason    string
	Time      time.Time
}

// FallbackRecorder is implemented by sinks able to record backend fallbacks.
type FallbackRecorder interface {
	RecordFallback(rec FallbackRecord) error
}

// BackendAttemptRecord captures one step of the backend manager.
type BackendAttemptRecord struct {
	Backend     string
	Requested   string
	ProblemType model.ProblemType
	Action      string
	Err         string
	Time        time.Time
}

// BackendAttemptRecorder is implemented by sinks able to record individual
// backend attempts, skips and failures.
type BackendAttemptRecorder interface {
	RecordBackendAttempt(rec BackendAttemptRecord) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveRecord) error                   { return nil }
func (NopSink) RecordDispatch(DispatchRecord) error             { return nil }
func (NopSink) RecordSuggestions(SuggestionRecord) error        { return nil }
func (NopSink) RecordDecision(DecisionRecord) error             { return nil }
func (NopSink) RecordFallback(FallbackRecord) error             { return nil }
func (NopSink) RecordBackendAttempt(BackendAttemptRecord) error { return nil }

// OrNop returns s, or NopSink when s is nil.
func OrNop(s MetricsSink) MetricsSink {
	if s == nil {
		return NopSink{}
	}
	return s
}
