package metrics

import "github.com/kilianp07/fleetdispatch/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// Addr is where the Prometheus handler is served; empty disables it.
	Addr string `json:"addr"`
}
