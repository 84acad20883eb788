package metrics

import (
	"errors"
	"strconv"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records engine activity in Prometheus metrics.
type PromSink struct {
	solves      *prometheus.CounterVec
	solveTime   *prometheus.HistogramVec
	assigned    *prometheus.GaugeVec
	confidence  prometheus.Gauge
	decisions   *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	publishFail prometheus.Counter
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already present on the registerer are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.solves, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optimizer_solves_total",
		Help: "Solves completed by the backend manager",
	}, []string{"backend", "problem_type", "fallback"})); err != nil {
		return nil, err
	}
	if s.solveTime, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optimizer_solve_duration_seconds",
		Help:    "Time spent in a backend manager solve",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})); err != nil {
		return nil, err
	}
	if s.assigned, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_last_pass_loads",
		Help: "Loads seen and assigned by the last dispatcher pass",
	}, []string{"state"})); err != nil {
		return nil, err
	}
	if s.confidence, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assistant_last_average_confidence",
		Help: "Average suggestion confidence of the last assistant pass",
	})); err != nil {
		return nil, err
	}
	if s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "human_decisions_total",
		Help: "Human decisions recorded against suggestions",
	}, []string{"action"})); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_fallbacks_total",
		Help: "Solves served by a backend other than the requested one",
	}, []string{"requested", "backend"})); err != nil {
		return nil, err
	}
	if s.attempts, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_attempts_total",
		Help: "Backend manager steps by backend and action",
	}, []string{"backend", "action"})); err != nil {
		return nil, err
	}
	if s.publishFail, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_publish_failures_observed_total",
		Help: "Decision publish failures reported by dispatcher passes",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve counts the solve and observes its duration.
func (s *PromSink) RecordSolve(rec coremetrics.SolveRecord) error {
	s.solves.WithLabelValues(rec.Backend, string(rec.ProblemType), strconv.FormatBool(rec.Fallback)).Inc()
	s.solveTime.WithLabelValues(rec.Backend).Observe(rec.Duration.Seconds())
	return nil
}

// RecordDispatch sets the last pass gauges.
func (s *PromSink) RecordDispatch(rec coremetrics.DispatchRecord) error {
	s.assigned.WithLabelValues("total").Set(float64(rec.TotalLoads))
	s.assigned.WithLabelValues("assigned").Set(float64(rec.AssignedLoads))
	s.publishFail.Add(float64(rec.PublishFailures))
	return nil
}

// RecordSuggestions sets the confidence gauge.
func (s *PromSink) RecordSuggestions(rec coremetrics.SuggestionRecord) error {
	s.confidence.Set(rec.AverageConfidence)
	return nil
}

// RecordDecision counts a human decision.
func (s *PromSink) RecordDecision(rec coremetrics.DecisionRecord) error {
	s.decisions.WithLabelValues(string(rec.Action)).Inc()
	return nil
}

// RecordFallback counts a backend fallback.
func (s *PromSink) RecordFallback(rec coremetrics.FallbackRecord) error {
	s.fallbacks.WithLabelValues(rec.Requested, rec.Backend).Inc()
	return nil
}

// RecordBackendAttempt counts a backend manager step.
func (s *PromSink) RecordBackendAttempt(rec coremetrics.BackendAttemptRecord) error {
	s.attempts.WithLabelValues(rec.Backend, rec.Action).Inc()
	return nil
}
