package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/fleetdispatch/core/assistant"
	"github.com/kilianp07/fleetdispatch/core/audit"
	"github.com/kilianp07/fleetdispatch/core/backend"
	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/optimizer"
	"github.com/kilianp07/fleetdispatch/infra/mqtt"
)

// EnvPrefix marks environment overrides; "__" separates nested keys, so
// K_HTTP__ADDR overrides http.addr.
const EnvPrefix = "K_"

type Config struct {
	Backends  backend.Config   `json:"backends"`
	Optimizer optimizer.Config `json:"optimizer"`
	Dispatch  dispatch.Config  `json:"dispatch"`
	Assistant assistant.Config `json:"assistant"`
	Audit     audit.Config     `json:"audit"`
	Metrics   metrics.Config   `json:"metrics"`
	MQTT      mqtt.Config      `json:"mqtt"`
	HTTP      HTTPConfig       `json:"http"`
	Logging   LoggingConfig    `json:"logging"`
	Sentry    SentryConfig     `json:"sentry"`
}

// Load reads the configuration file at path and applies K_ environment
// overrides. An empty path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills unset values in every section.
func (c *Config) SetDefaults() {
	c.Backends.SetDefaults()
	c.Optimizer.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Assistant.SetDefaults()
	c.HTTP.SetDefaults()
	c.Logging.SetDefaults()
	if c.Optimizer.Backend == "" {
		c.Optimizer.Backend = c.Backends.Default
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"backends", c.Backends.Validate},
		{"optimizer", c.Optimizer.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"assistant", c.Assistant.Validate},
		{"http", c.HTTP.Validate},
		{"logging", c.Logging.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("config %s: %w", ch.name, err)
		}
	}
	if c.Audit.Capacity < 0 {
		return fmt.Errorf("config audit: capacity must not be negative")
	}
	return nil
}
