package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchLatency  *prometheus.HistogramVec
	loadsDispatched  *prometheus.CounterVec
	loadsUnassigned  prometheus.Counter
	publishSuccess   prometheus.Counter
	publishFailure   prometheus.Counter
	optimizerFailure prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_pass_duration_seconds",
			Help:    "Duration of a dispatch pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
	loads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loads_dispatched_total",
			Help: "Number of loads assigned, by rule",
		},
		[]string{"rule"},
	)
	unassigned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "loads_unassigned_total",
			Help: "Number of loads left unassigned by a dispatch pass",
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "decision_publish_success_total",
			Help: "Number of successful decision publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "decision_publish_failure_total",
			Help: "Number of failed decision publish operations",
		},
	)
	opt := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_optimizer_failures_total",
			Help: "Number of dispatch passes where the optimizer failed and rules took over",
		},
	)
	return lat, loads, unassigned, suc, fail, opt
}

func init() {
	dispatchLatency, loadsDispatched, loadsUnassigned, publishSuccess, publishFailure, optimizerFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchLatency, loadsDispatched, loadsUnassigned, publishSuccess, publishFailure, optimizerFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	dispatchLatency, loadsDispatched, loadsUnassigned, publishSuccess, publishFailure, optimizerFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
