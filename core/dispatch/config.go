package dispatch

import (
	"fmt"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Config defines dispatch-related settings.
type Config struct {
	UseOptimization         bool                `json:"use_optimization"`
	Backend                 string              `json:"backend"`
	ProblemType             model.ProblemType   `json:"problem_type"`
	Objective               model.ObjectiveType `json:"objective"`
	MaxAssignmentsPerDriver int                 `json:"max_assignments_per_driver"`
	PublishTimeout          time.Duration       `json:"publish_timeout"`
	Rules                   []RuleConfig        `json:"rules"`
}

// RuleConfig overrides the enablement or priority of a default rule.
type RuleConfig struct {
	ID       string `json:"id"`
	Enabled  *bool  `json:"enabled"`
	Priority int    `json:"priority"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.MaxAssignmentsPerDriver <= 0 {
		c.MaxAssignmentsPerDriver = 1
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 5 * time.Second
	}
	if c.ProblemType == "" {
		c.ProblemType = model.ProblemLoadAssignment
	}
}

// Validate rejects unknown problem types and rule identifiers.
func (c Config) Validate() error {
	if !c.ProblemType.Valid() {
		return fmt.Errorf("dispatch: unknown problem type %q", c.ProblemType)
	}
	known := make(map[string]bool)
	for _, r := range DefaultRules() {
		known[r.ID] = true
	}
	for _, rc := range c.Rules {
		if !known[rc.ID] {
			return fmt.Errorf("dispatch: unknown rule %q", rc.ID)
		}
		if rc.Priority < 0 {
			return fmt.Errorf("dispatch: rule %q priority must be >= 1", rc.ID)
		}
	}
	return nil
}
