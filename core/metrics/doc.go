// Package metrics defines the sink contract used by the engine to report
// solves, dispatch passes, suggestion passes and human decisions. Sinks like
// PromSink and InfluxSink live in infra/metrics and can be combined with
// NewMultiSink. NewMetricsSink returns a MultiSink automatically when several
// sinks are configured.
package metrics
