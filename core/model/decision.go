package model

import (
	"encoding/json"
	"time"
)

// DispatcherDecision is an authoritative assignment produced by the dispatcher.
type DispatcherDecision struct {
	LoadID        string  `json:"load_id"`
	DriverID      string  `json:"driver_id"`
	TruckID       string  `json:"truck_id,omitempty"`
	RuleID        string  `json:"rule_id"`
	Reason        string  `json:"reason"`
	Confidence    float64 `json:"confidence"`
	Priority      int     `json:"priority"`
	DistanceMiles float64 `json:"distance_miles"`
	Route         []Point `json:"route,omitempty"`
}

// DispatchMetadata summarizes a dispatch pass.
type DispatchMetadata struct {
	TotalLoads    int           `json:"total_loads"`
	AssignedLoads int           `json:"assigned_loads"`
	ExecutionTime time.Duration `json:"execution_time"`
	RulesApplied  []string      `json:"rules_applied"`
	Backend       string        `json:"backend,omitempty"`
}

// DispatchResult is the output of a dispatch pass.
type DispatchResult struct {
	Decisions       []DispatcherDecision `json:"decisions"`
	UnassignedLoads []string             `json:"unassigned_loads"`
	Metadata        DispatchMetadata     `json:"metadata"`
	PublishErrors   map[string]string    `json:"publish_errors,omitempty"`
}

// SuggestionSource tells which path produced a suggestion.
type SuggestionSource string

const (
	SourceOptimizer SuggestionSource = "optimizer"
	SourceRules     SuggestionSource = "rules"
)

// AutomationSuggestion is an advisory assignment. It carries no authority
// until a human decision is logged against it.
type AutomationSuggestion struct {
	ID            string           `json:"id"`
	LoadID        string           `json:"load_id"`
	DriverID      string           `json:"driver_id"`
	TruckID       string           `json:"truck_id,omitempty"`
	Confidence    float64          `json:"confidence"`
	Score         float64          `json:"score"`
	Factors       []string         `json:"factors"`
	Reason        string           `json:"reason"`
	Priority      int              `json:"priority"`
	DistanceMiles float64          `json:"distance_miles"`
	Source        SuggestionSource `json:"source"`
}

// RequiresReview is always true.
func (AutomationSuggestion) RequiresReview() bool { return true }

type suggestionJSON AutomationSuggestion

// MarshalJSON adds the requires_review flag.
func (s AutomationSuggestion) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		suggestionJSON
		RequiresReview bool `json:"requires_review"`
	}{suggestionJSON(s), true})
}

// AutomationMetadata summarizes a suggestion pass.
type AutomationMetadata struct {
	TotalLoads        int           `json:"total_loads"`
	SuggestedLoads    int           `json:"suggested_loads"`
	ExecutionTime     time.Duration `json:"execution_time"`
	Backend           string        `json:"backend,omitempty"`
	AverageConfidence float64       `json:"average_confidence"`
}

// AutomationResult is the output of the assistant.
type AutomationResult struct {
	Suggestions      []AutomationSuggestion `json:"suggestions"`
	UnprocessedLoads []string               `json:"unprocessed_loads"`
	Metadata         AutomationMetadata     `json:"metadata"`
}

// RequiresHumanReview is always true.
func (AutomationResult) RequiresHumanReview() bool { return true }

type automationResultJSON AutomationResult

// MarshalJSON adds the requires_human_review flag.
func (r AutomationResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		automationResultJSON
		RequiresHumanReview bool `json:"requires_human_review"`
	}{automationResultJSON(r), true})
}

// AuditAction enumerates audit log events.
type AuditAction string

const (
	AuditSuggestionGenerated AuditAction = "suggestion_generated"
	AuditSuggestionAccepted  AuditAction = "suggestion_accepted"
	AuditSuggestionRejected  AuditAction = "suggestion_rejected"
	AuditManualOverride      AuditAction = "manual_override"
)

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditSuggestionGenerated, AuditSuggestionAccepted, AuditSuggestionRejected, AuditManualOverride:
		return true
	}
	return false
}

// AuditEntry is one append-only audit record.
type AuditEntry struct {
	ID           string            `json:"id"`
	Seq          uint64            `json:"seq"`
	Timestamp    time.Time         `json:"timestamp"`
	Action       AuditAction       `json:"action"`
	LoadID       string            `json:"load_id"`
	DriverID     string            `json:"driver_id,omitempty"`
	UserID       string            `json:"user_id"`
	SuggestionID string            `json:"suggestion_id,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}
