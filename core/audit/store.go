package audit

import (
	"context"
	"time"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Query defines filters for retrieving entries. Zero fields match anything.
type Query struct {
	Start        time.Time
	End          time.Time
	LoadID       string
	UserID       string
	SuggestionID string
	Action       model.AuditAction
	// Limit keeps only the most recent matches when positive.
	Limit int
}

// Match reports whether e passes every filter.
func (q Query) Match(e model.AuditEntry) bool {
	if !q.Start.IsZero() && e.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && e.Timestamp.After(q.End) {
		return false
	}
	if q.LoadID != "" && e.LoadID != q.LoadID {
		return false
	}
	if q.UserID != "" && e.UserID != q.UserID {
		return false
	}
	if q.SuggestionID != "" && e.SuggestionID != q.SuggestionID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	return true
}

func (q Query) limit(entries []model.AuditEntry) []model.AuditEntry {
	if q.Limit > 0 && len(entries) > q.Limit {
		return entries[len(entries)-q.Limit:]
	}
	return entries
}

// Store persists audit entries and supports querying. Query returns
// entries in append order.
type Store interface {
	Append(ctx context.Context, e model.AuditEntry) error
	Query(ctx context.Context, q Query) ([]model.AuditEntry, error)
	Close() error
}
