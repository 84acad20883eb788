package backend

import (
	"context"
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/model"
	"golang.org/x/time/rate"
)

// HardwareConfig holds the provider account settings.
type HardwareConfig struct {
	APIToken         string  `json:"api_token"`
	Region           string  `json:"region"`
	JobsPerMinute    float64 `json:"jobs_per_minute"`
	Burst            int     `json:"burst"`
	CostPerExecution float64 `json:"cost_per_execution"`
	// Classical names the backend the provider is emulated on.
	Classical string `json:"classical"`
}

// HardwareBackend stands in for a remote quantum provider. Problems run on
// the classical backend and the solution is labelled with the provider name
// and marked as emulated. The limiter models the account's job quota.
type HardwareBackend struct {
	name      string
	cfg       HardwareConfig
	classical Backend
	limiter   *rate.Limiter
}

// NewHardwareBackend returns a provider stub delegating to classical.
func NewHardwareBackend(name string, cfg HardwareConfig, classical Backend) *HardwareBackend {
	if cfg.JobsPerMinute <= 0 {
		cfg.JobsPerMinute = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	return &HardwareBackend{
		name:      name,
		cfg:       cfg,
		classical: classical,
		limiter:   rate.NewLimiter(rate.Limit(cfg.JobsPerMinute/60), cfg.Burst),
	}
}

func (b *HardwareBackend) Name() string { return b.name }

// IsAvailable requires an API token and a usable classical backend.
func (b *HardwareBackend) IsAvailable() bool {
	return b.cfg.APIToken != "" && b.classical != nil && b.classical.IsAvailable()
}

func (b *HardwareBackend) Capabilities() Capabilities {
	var caps Capabilities
	if b.classical != nil {
		caps = b.classical.Capabilities()
	}
	caps.CostPerExecution = b.cfg.CostPerExecution
	return caps
}

func (b *HardwareBackend) Solve(ctx context.Context, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	if !b.IsAvailable() {
		return model.OptimizationSolution{}, fmt.Errorf("%s: %w", b.name, ErrBackendUnavailable)
	}
	if !b.limiter.Allow() {
		return model.OptimizationSolution{}, fmt.Errorf("%s: %w", b.name, ErrQuotaExceeded)
	}
	sol, err := b.classical.Solve(ctx, p)
	if err != nil {
		return model.OptimizationSolution{}, fmt.Errorf("%s: %w", b.name, err)
	}
	sol.Metadata.Backend = b.name
	sol.Metadata.Emulated = true
	return sol, nil
}
