// Package audit keeps the append-only trail of generated suggestions and
// human decisions. Log retains the most recent entries in memory; an
// optional Store persists every entry before it is retained.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// DefaultCapacity is the number of entries a Log retains.
const DefaultCapacity = 5000

// Log is a fixed-capacity ring of audit entries. Appends are serialized, so
// concurrent writers never lose or duplicate an entry.
type Log struct {
	mu      sync.Mutex
	buf     []model.AuditEntry
	head    int
	size    int
	seq     uint64
	store   Store
	now     func() time.Time
	newUUID func() string
}

// NewLog creates a log retaining capacity entries (DefaultCapacity when
// capacity <= 0). store may be nil.
func NewLog(capacity int, store Store) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		buf:     make([]model.AuditEntry, capacity),
		store:   store,
		now:     time.Now,
		newUUID: func() string { return uuid.NewString() },
	}
}

// Append stamps e with an ID, sequence number and timestamp, writes it to
// the store and retains it. When the store fails nothing is retained and
// the error is returned.
func (l *Log) Append(ctx context.Context, e model.AuditEntry) (model.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.ID == "" {
		e.ID = l.newUUID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	e.Seq = l.seq + 1
	if l.store != nil {
		if err := l.store.Append(ctx, e); err != nil {
			return model.AuditEntry{}, fmt.Errorf("audit store: %w", err)
		}
	}
	l.seq = e.Seq
	idx := (l.head + l.size) % len(l.buf)
	if l.size == len(l.buf) {
		l.head = (l.head + 1) % len(l.buf)
	} else {
		l.size++
	}
	l.buf[idx] = e
	return e, nil
}

// Entries returns the retained entries, oldest first.
func (l *Log) Entries() []model.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.AuditEntry, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.buf[(l.head+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of retained entries.
func (l *Log) Capacity() int { return len(l.buf) }

// Query filters the retained entries.
func (l *Log) Query(q Query) []model.AuditEntry {
	var out []model.AuditEntry
	for _, e := range l.Entries() {
		if q.Match(e) {
			out = append(out, e)
		}
	}
	return q.limit(out)
}

// Search queries the store when one is configured, the retained entries
// otherwise.
func (l *Log) Search(ctx context.Context, q Query) ([]model.AuditEntry, error) {
	if l.store == nil {
		return l.Query(q), nil
	}
	return l.store.Query(ctx, q)
}

// Store returns the persistent store, or nil.
func (l *Log) Store() Store { return l.store }

// Close closes the store.
func (l *Log) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
