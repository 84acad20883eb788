package assistant

import "github.com/prometheus/client_golang/prometheus"

var (
	suggestionsTotal *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	sug := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_suggestions_total",
			Help: "Suggestions generated, by source",
		},
		[]string{"source"},
	)
	dec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_human_decisions_total",
			Help: "Human decisions logged against suggestions",
		},
		[]string{"action"},
	)
	return sug, dec
}

func init() {
	suggestionsTotal, decisionsTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers assistant metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(suggestionsTotal, decisionsTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	suggestionsTotal, decisionsTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
