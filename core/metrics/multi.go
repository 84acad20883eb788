package metrics

import "errors"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards to every sink and joins their errors.
func (m *MultiSink) RecordSolve(rec SolveRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSolve(rec))
	}
	return errors.Join(errs...)
}

// RecordDispatch forwards to every sink and joins their errors.
func (m *MultiSink) RecordDispatch(rec DispatchRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordDispatch(rec))
	}
	return errors.Join(errs...)
}

// RecordSuggestions forwards to every sink and joins their errors.
func (m *MultiSink) RecordSuggestions(rec SuggestionRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordSuggestions(rec))
	}
	return errors.Join(errs...)
}

// RecordDecision forwards to the sinks that record decisions.
func (m *MultiSink) RecordDecision(rec DecisionRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(DecisionRecorder); ok {
			errs = append(errs, r.RecordDecision(rec))
		}
	}
	return errors.Join(errs...)
}

// RecordFallback forwards to the sinks that record fallbacks.
func (m *MultiSink) RecordFallback(rec FallbackRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(FallbackRecorder); ok {
			errs = append(errs, r.RecordFallback(rec))
		}
	}
	return errors.Join(errs...)
}

// RecordBackendAttempt forwards to the sinks that record backend attempts.
func (m *MultiSink) RecordBackendAttempt(rec BackendAttemptRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(BackendAttemptRecorder); ok {
			errs = append(errs, r.RecordBackendAttempt(rec))
		}
	}
	return errors.Join(errs...)
}
