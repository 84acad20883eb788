package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/backend"
	"github.com/kilianp07/fleetdispatch/core/model"
)

const sample = `backends:
  default: quantum_inspired
  backends:
    - type: quantum_inspired
      conf:
        algorithm: genetic
    - type: linear_programming
    - type: hardware
      name: ibm_quantum
optimizer:
  cost_per_mile: 3.1
  max_deadhead_miles: 250
dispatch:
  use_optimization: true
  max_assignments_per_driver: 2
  publish_timeout: 2s
  rules:
    - id: proximity
      priority: 1
assistant:
  min_confidence: 0.7
audit:
  capacity: 100
  store:
    type: sqlite
    conf:
      path: audit.db
metrics:
  addr: ":9100"
  sinks:
    - type: "nop"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  topic_prefix: "acme/dispatch"
http:
  token: secret
logging:
  level: debug
`

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)

	assert.Equal(t, backend.QuantumInspired, cfg.Backends.Default)
	require.Len(t, cfg.Backends.Backends, 3)
	assert.Equal(t, "ibm_quantum", cfg.Backends.Backends[2].Name)
	assert.Equal(t, 3.1, cfg.Optimizer.CostPerMile)
	assert.Equal(t, 250.0, cfg.Optimizer.MaxDeadheadMiles)
	assert.Equal(t, backend.QuantumInspired, cfg.Optimizer.Backend, "optimizer inherits the default backend")
	assert.True(t, cfg.Dispatch.UseOptimization)
	assert.Equal(t, 2, cfg.Dispatch.MaxAssignmentsPerDriver)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.PublishTimeout)
	require.Len(t, cfg.Dispatch.Rules, 1)
	assert.Equal(t, "proximity", cfg.Dispatch.Rules[0].ID)
	assert.Equal(t, 0.7, cfg.Assistant.MinConfidence)
	assert.Equal(t, 3, cfg.Assistant.MaxPerLoad)
	assert.Equal(t, model.ProblemLoadAssignment, cfg.Assistant.ProblemType)
	assert.Equal(t, 100, cfg.Audit.Capacity)
	require.NotNil(t, cfg.Audit.Store)
	assert.Equal(t, "audit.db", cfg.Audit.Store.Conf["path"])
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "acme/dispatch", cfg.MQTT.TopicPrefix)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.HTTP.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("K_HTTP__ADDR", ":9999")
	t.Setenv("K_DISPATCH__MAX_ASSIGNMENTS_PER_DRIVER", "4")
	t.Setenv("K_ASSISTANT__MIN_CONFIDENCE", "0.65")
	cfg, err := Load(writeConfig(t, "config.yaml", sample))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, 4, cfg.Dispatch.MaxAssignmentsPerDriver)
	assert.Equal(t, 0.65, cfg.Assistant.MinConfidence)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, backend.QuantumInspired, cfg.Backends.Default)
	assert.Len(t, cfg.Backends.Backends, 5)
	assert.Equal(t, 1, cfg.Dispatch.MaxAssignmentsPerDriver)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{"http":{"addr":":7000"},"assistant":{"max_per_load":5}}`))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, 5, cfg.Assistant.MaxPerLoad)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"format":  "",
		"backend": "backends:\n  default: dwave\n",
		"rule":    "dispatch:\n  rules:\n    - id: telepathy\n",
		"level":   "logging:\n  level: loud\n",
		"conf":    "assistant:\n  min_confidence: 1.5\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			file := "config.yaml"
			if name == "format" {
				file = "config.toml"
			}
			_, err := Load(writeConfig(t, file, data))
			assert.Error(t, err)
		})
	}
}
