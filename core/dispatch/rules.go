package dispatch

import (
	"sort"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Rule identifiers of the default rule set.
const (
	RuleHighPriorityTopRated = "high_priority_top_rated"
	RuleCertificationMatch   = "certification_match"
	RuleProximity            = "proximity"
	RuleTimeWindowFit        = "time_window_fit"
	RuleAvailableDriver      = "available_driver"
)

// RuleOptimizer is recorded on decisions taken from the optimizer pass.
const RuleOptimizer = "optimizer"

const (
	proximityRadiusMiles  = 50.0
	highPriorityThreshold = 8
	topRatedThreshold     = 4.5
)

// Candidate is a load/driver pairing under evaluation.
type Candidate struct {
	Load     model.Load
	Driver   model.Driver
	Distance float64
}

// Rule is a named predicate. A rule whose condition holds yields an outcome
// scored Confidence / Priority; priority 1 is the highest. A Required rule
// also gates eligibility: a driver failing it is never assigned the load.
// When Applies is set and returns false the rule has nothing to check for
// the candidate; a required rule then only gates and never yields an outcome.
type Rule struct {
	ID         string
	Priority   int
	Enabled    bool
	Required   bool
	Confidence float64
	Reason     string
	Condition  func(Candidate) bool
	Applies    func(Candidate) bool
}

// applies reports whether the rule has a real constraint to check for c.
func (r Rule) applies(c Candidate) bool {
	return r.Applies == nil || r.Applies(c)
}

// Score is the rule's weight for an outcome.
func (r Rule) Score() float64 {
	p := r.Priority
	if p < 1 {
		p = 1
	}
	return r.Confidence / float64(p)
}

// DefaultRules returns the standard rule set, highest priority first.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         RuleHighPriorityTopRated,
			Priority:   1,
			Enabled:    true,
			Confidence: 0.95,
			Reason:     "high-priority load assigned to top-rated driver",
			Condition: func(c Candidate) bool {
				return c.Load.Priority >= highPriorityThreshold && c.Driver.Performance.Rating >= topRatedThreshold
			},
		},
		{
			ID:         RuleProximity,
			Priority:   2,
			Enabled:    true,
			Confidence: 0.85,
			Reason:     "driver within 50 miles of pickup",
			Condition:  func(c Candidate) bool { return c.Distance <= proximityRadiusMiles },
		},
		{
			ID:         RuleCertificationMatch,
			Priority:   2,
			Enabled:    true,
			Required:   true,
			Confidence: 0.8,
			Reason:     "driver certifications cover special requirements",
			Condition: func(c Candidate) bool {
				return c.Driver.HasCertifications(c.Load.SpecialRequirements)
			},
			Applies: func(c Candidate) bool { return len(c.Load.SpecialRequirements) > 0 },
		},
		{
			ID:         RuleTimeWindowFit,
			Priority:   3,
			Enabled:    true,
			Required:   true,
			Confidence: 0.8,
			Reason:     "load window within driver availability",
			Condition:  func(c Candidate) bool { return c.Driver.FitsWindow(c.Load.TimeWindow) },
			Applies: func(c Candidate) bool {
				a := c.Driver.Availability
				return c.Load.TimeWindow != nil && !(a.Start.IsZero() && a.End.IsZero())
			},
		},
		{
			ID:         RuleAvailableDriver,
			Priority:   5,
			Enabled:    true,
			Confidence: 0.7,
			Reason:     "available driver",
			Condition:  func(Candidate) bool { return true },
		},
	}
}

// applyRuleConfig applies overrides and sorts by priority. The sort is
// stable so rules sharing a priority keep their declaration order.
func applyRuleConfig(rules []Rule, cfgs []RuleConfig) []Rule {
	out := append([]Rule(nil), rules...)
	for _, rc := range cfgs {
		for i := range out {
			if out[i].ID != rc.ID {
				continue
			}
			if rc.Enabled != nil {
				out[i].Enabled = *rc.Enabled
			}
			if rc.Priority > 0 {
				out[i].Priority = rc.Priority
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
