package assistant

import (
	"context"
	"fmt"

	"github.com/kilianp07/fleetdispatch/core/audit"
	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
)

// Decision is a human verdict on a suggestion.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
	DecisionOverride Decision = "override"
)

func (d Decision) action() (model.AuditAction, bool) {
	switch d {
	case DecisionAccepted:
		return model.AuditSuggestionAccepted, true
	case DecisionRejected:
		return model.AuditSuggestionRejected, true
	case DecisionOverride:
		return model.AuditManualOverride, true
	}
	return "", false
}

// HumanDecision is submitted by dispatch staff for one suggestion.
type HumanDecision struct {
	SuggestionID     string   `json:"suggestion_id"`
	UserID           string   `json:"user_id"`
	Decision         Decision `json:"decision"`
	Reason           string   `json:"reason,omitempty"`
	OverrideDriverID string   `json:"override_driver_id,omitempty"`
}

// Validate checks required fields.
func (h HumanDecision) Validate() error {
	if h.SuggestionID == "" {
		return fmt.Errorf("%w: suggestion_id is required", ErrInvalidDecision)
	}
	if h.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidDecision)
	}
	if _, ok := h.Decision.action(); !ok {
		return fmt.Errorf("%w: unknown decision %q", ErrInvalidDecision, h.Decision)
	}
	if h.Decision == DecisionOverride && h.OverrideDriverID == "" {
		return fmt.Errorf("%w: override requires override_driver_id", ErrInvalidDecision)
	}
	return nil
}

// LogHumanDecision records the outcome of a suggestion. It is the only way
// a suggestion becomes final. The returned error is non-nil whenever the
// entry was not durably logged.
func (e *Engine) LogHumanDecision(ctx context.Context, h HumanDecision) (model.AuditEntry, error) {
	if err := h.Validate(); err != nil {
		return model.AuditEntry{}, err
	}
	gen, err := e.generation(ctx, h.SuggestionID)
	if err != nil {
		return model.AuditEntry{}, err
	}
	action, _ := h.Decision.action()
	driverID := gen.DriverID
	if h.Decision == DecisionOverride {
		driverID = h.OverrideDriverID
	}
	entry, err := e.log.Append(ctx, model.AuditEntry{
		Action:       action,
		LoadID:       gen.LoadID,
		DriverID:     driverID,
		UserID:       h.UserID,
		SuggestionID: h.SuggestionID,
		Reason:       h.Reason,
		Metadata:     map[string]string{"suggested_driver_id": gen.DriverID},
	})
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("assistant: log decision: %w", err)
	}

	decisionsTotal.WithLabelValues(string(action)).Inc()
	e.mu.RLock()
	sink, bus := e.metrics, e.bus
	e.mu.RUnlock()
	if dr, ok := sink.(metrics.DecisionRecorder); ok {
		if err := dr.RecordDecision(metrics.DecisionRecord{Action: action, UserID: h.UserID, Time: entry.Timestamp}); err != nil {
			e.logger.Errorf("metrics error: %v", err)
		}
	}
	if bus != nil {
		bus.Publish(events.DecisionEvent{SuggestionID: h.SuggestionID, LoadID: gen.LoadID, UserID: h.UserID, Action: action})
	}
	e.logger.Infof("%s %s suggestion %s for load %s", h.UserID, h.Decision, h.SuggestionID, gen.LoadID)
	return entry, nil
}

// generation finds the most recent generation entry for id, first in the
// retained log, then in the persistent store.
func (e *Engine) generation(ctx context.Context, id string) (model.AuditEntry, error) {
	q := audit.Query{SuggestionID: id, Action: model.AuditSuggestionGenerated, Limit: 1}
	if got := e.log.Query(q); len(got) > 0 {
		return got[0], nil
	}
	if store := e.log.Store(); store != nil {
		got, err := store.Query(ctx, q)
		if err != nil {
			return model.AuditEntry{}, fmt.Errorf("assistant: lookup suggestion %s: %w", id, err)
		}
		if len(got) > 0 {
			return got[0], nil
		}
	}
	return model.AuditEntry{}, fmt.Errorf("%w: %s", ErrUnknownSuggestion, id)
}
