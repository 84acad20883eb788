package config

import (
	"fmt"
	"time"
)

// HTTPConfig defines the audit API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on every API request.
	Token        string        `json:"token"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	// RateLimit bounds API requests per second; zero disables limiting.
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`
}

// SetDefaults applies sane defaults.
func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = int(c.RateLimit) + 1
	}
}

// Validate checks ranges.
func (c HTTPConfig) Validate() error {
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	return nil
}
