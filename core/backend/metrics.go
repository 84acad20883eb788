package backend

import "github.com/prometheus/client_golang/prometheus"

var (
	solvesTotal    *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
	solveDuration  *prometheus.HistogramVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec) {
	solves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_solves_total",
			Help: "Backend solve attempts by outcome",
		},
		[]string{"backend", "outcome"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_fallbacks_total",
			Help: "Solves answered by a backend other than the requested one",
		},
		[]string{"requested", "backend"},
	)
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_solve_duration_seconds",
			Help:    "Wall-clock duration of successful backend solves",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "problem_type"},
	)
	return solves, fallbacks, dur
}

func init() {
	solvesTotal, fallbacksTotal, solveDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers backend metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solvesTotal, fallbacksTotal, solveDuration)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solvesTotal, fallbacksTotal, solveDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
