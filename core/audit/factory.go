package audit

import (
	"github.com/kilianp07/fleetdispatch/core/factory"
)

// Config defines the audit log capacity and its optional store.
type Config struct {
	Capacity int                   `json:"capacity"`
	Store    *factory.ModuleConfig `json:"store"`
}

// SQLiteConfig configures the sqlite store.
type SQLiteConfig struct {
	Path string `json:"path"`
}

// JSONLConfig configures the rotating JSONL store.
type JSONLConfig struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// RedisConfig configures the redis store.
type RedisConfig struct {
	URL    string `json:"url"`
	Key    string `json:"key"`
	MaxLen int64  `json:"max_len"`
}

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	_ = RegisterStore("sqlite", func(conf map[string]any) (Store, error) {
		c := SQLiteConfig{Path: "audit.db"}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
	_ = RegisterStore("jsonl", func(conf map[string]any) (Store, error) {
		c := JSONLConfig{Path: "audit.jsonl", MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = RegisterStore("redis", func(conf map[string]any) (Store, error) {
		c := RedisConfig{URL: "redis://localhost:6379/0"}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRedisStore(c.URL, c.Key, c.MaxLen)
	})
}

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates a Store from the provided configuration.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	return storeRegistry.Create(cfg)
}

// NewLogFromConfig builds the log and its store, if one is configured.
func NewLogFromConfig(cfg Config) (*Log, error) {
	if cfg.Store == nil || cfg.Store.Type == "" {
		return NewLog(cfg.Capacity, nil), nil
	}
	store, err := NewStore(*cfg.Store)
	if err != nil {
		return nil, err
	}
	return NewLog(cfg.Capacity, store), nil
}
