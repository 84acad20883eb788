package backend

import (
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/factory"
	"github.com/kilianp07/fleetdispatch/core/logger"
)

// Config lists the backends to register. Entries are built in order, so a
// hardware entry must come after the classical backend it delegates to.
type Config struct {
	Default  string                 `json:"default"`
	Backends []factory.ModuleConfig `json:"backends"`
}

// SetDefaults fills in the quantum-inspired default and the standard set of
// backends when none are configured.
func (c *Config) SetDefaults() {
	if c.Default == "" {
		c.Default = QuantumInspired
	}
	if len(c.Backends) == 0 {
		c.Backends = []factory.ModuleConfig{
			{Type: QuantumInspired},
			{Type: LinearProgramming},
			{Type: "hardware", Name: IBMQuantum},
			{Type: "hardware", Name: AWSBraket},
			{Type: "hardware", Name: AzureQuantum},
		}
	}
}

// Validate checks that the default backend is listed.
func (c Config) Validate() error {
	for _, b := range c.Backends {
		if moduleName(b) == c.Default {
			return nil
		}
	}
	return fmt.Errorf("backend: default %q is not configured", c.Default)
}

// builder creates a backend; built holds the backends created so far.
type builder func(mod factory.ModuleConfig, built map[string]Backend) (Backend, error)

var registry = factory.NewRegistry[builder]()

func init() {
	_ = registry.Register(QuantumInspired, func(conf map[string]any) (builder, error) {
		cfg := DefaultQuantumInspiredConfig()
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return func(factory.ModuleConfig, map[string]Backend) (Backend, error) {
			return NewQuantumInspiredBackend(cfg)
		}, nil
	})
	_ = registry.Register(LinearProgramming, func(conf map[string]any) (builder, error) {
		cfg := DefaultLPConfig()
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return func(factory.ModuleConfig, map[string]Backend) (Backend, error) {
			return NewLPBackend(cfg), nil
		}, nil
	})
	_ = registry.Register("hardware", func(conf map[string]any) (builder, error) {
		var c HardwareConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Classical == "" {
			c.Classical = QuantumInspired
		}
		return func(mod factory.ModuleConfig, built map[string]Backend) (Backend, error) {
			if mod.Name == "" {
				return nil, fmt.Errorf("hardware backend requires a name")
			}
			classical, ok := built[c.Classical]
			if !ok {
				return nil, fmt.Errorf("hardware backend %s: classical backend %q not built", mod.Name, c.Classical)
			}
			return NewHardwareBackend(mod.Name, c, classical), nil
		}, nil
	})
}

func moduleName(mod factory.ModuleConfig) string {
	if mod.Name != "" {
		return mod.Name
	}
	return mod.Type
}

// NewManagerFromConfig builds and registers every configured backend.
func NewManagerFromConfig(cfg Config, log logger.Logger) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := NewManager(cfg.Default, log)
	built := make(map[string]Backend, len(cfg.Backends))
	for _, mod := range cfg.Backends {
		mk, err := registry.Create(mod)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", moduleName(mod), err)
		}
		b, err := mk(mod, built)
		if err != nil {
			return nil, err
		}
		built[b.Name()] = b
		m.RegisterBackend(b)
	}
	return m, nil
}
