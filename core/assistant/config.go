package assistant

import (
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Config defines assistant settings.
type Config struct {
	UseOptimization bool                `json:"use_optimization"`
	Backend         string              `json:"backend"`
	ProblemType     model.ProblemType   `json:"problem_type"`
	Objective       model.ObjectiveType `json:"objective"`
	// MinConfidence is the exclusive threshold a rule-based suggestion
	// must exceed.
	MinConfidence float64 `json:"min_confidence"`
	// MaxPerLoad bounds the ranked suggestions returned for one load.
	MaxPerLoad int `json:"max_per_load"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.6
	}
	if c.MaxPerLoad <= 0 {
		c.MaxPerLoad = 3
	}
	if c.ProblemType == "" {
		c.ProblemType = model.ProblemLoadAssignment
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.MinConfidence >= 1 {
		return fmt.Errorf("assistant: min_confidence must be below 1")
	}
	if !c.ProblemType.Valid() {
		return fmt.Errorf("assistant: unknown problem type %q", c.ProblemType)
	}
	return nil
}
