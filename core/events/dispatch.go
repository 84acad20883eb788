package events

import (
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// DispatchEvent summarizes one dispatcher pass.
type DispatchEvent struct {
	TotalLoads    int
	AssignedLoads int
	Backend       string
	RulesApplied  []string
	Duration      time.Duration
}

// SuggestionEvent summarizes one assistant pass.
type SuggestionEvent struct {
	TotalLoads        int
	SuggestedLoads    int
	AverageConfidence float64
	Backend           string
}

// DecisionEvent is published when a human decision is logged.
type DecisionEvent struct {
	SuggestionID string
	LoadID       string
	UserID       string
	Action       model.AuditAction
}
