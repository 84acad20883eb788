package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
)

func entry(load string, action model.AuditAction) model.AuditEntry {
	return model.AuditEntry{Action: action, LoadID: load, UserID: "system"}
}

func TestLogKeepsMostRecentEntriesInOrder(t *testing.T) {
	l := NewLog(0, nil)
	require.Equal(t, DefaultCapacity, l.Capacity())
	const n = 12000
	for i := 0; i < n; i++ {
		_, err := l.Append(context.Background(), entry(fmt.Sprintf("L%d", i), model.AuditSuggestionGenerated))
		require.NoError(t, err)
	}
	got := l.Entries()
	require.Len(t, got, DefaultCapacity)
	for i, e := range got {
		want := uint64(n - DefaultCapacity + i + 1)
		if e.Seq != want {
			t.Fatalf("entry %d: seq %d, want %d", i, e.Seq, want)
		}
		assert.Equal(t, fmt.Sprintf("L%d", want-1), e.LoadID)
	}
}

func TestLogSmallCapacity(t *testing.T) {
	l := NewLog(3, nil)
	for i := 0; i < 5; i++ {
		_, _ = l.Append(context.Background(), entry(fmt.Sprint(i), model.AuditSuggestionGenerated))
	}
	var ids []string
	for _, e := range l.Entries() {
		ids = append(ids, e.LoadID)
	}
	assert.Equal(t, []string{"2", "3", "4"}, ids)
	assert.Equal(t, 3, l.Len())
}

func TestLogConcurrentAppends(t *testing.T) {
	l := NewLog(10000, nil)
	var wg sync.WaitGroup
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, err := l.Append(context.Background(), entry(fmt.Sprintf("%d-%d", g, i), model.AuditSuggestionGenerated))
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	got := l.Entries()
	require.Len(t, got, 5000)
	ids := map[string]bool{}
	for i, e := range got {
		assert.Equal(t, uint64(i+1), e.Seq)
		assert.False(t, ids[e.ID], "duplicate id")
		ids[e.ID] = true
	}
}

type failingStore struct{ err error }

func (f failingStore) Append(context.Context, model.AuditEntry) error { return f.err }
func (f failingStore) Query(context.Context, Query) ([]model.AuditEntry, error) {
	return nil, f.err
}
func (f failingStore) Close() error { return nil }

func TestLogStoreFailureIsSurfaced(t *testing.T) {
	cause := errors.New("disk full")
	l := NewLog(10, failingStore{err: cause})
	_, err := l.Append(context.Background(), entry("L1", model.AuditSuggestionAccepted))
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, l.Len(), "nothing retained when the store fails")
}

func TestLogQuery(t *testing.T) {
	l := NewLog(10, nil)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	_, _ = l.Append(context.Background(), entry("L1", model.AuditSuggestionGenerated))
	_, _ = l.Append(context.Background(), model.AuditEntry{Action: model.AuditSuggestionAccepted, LoadID: "L1", UserID: "alice", SuggestionID: "s1"})
	_, _ = l.Append(context.Background(), entry("L2", model.AuditSuggestionGenerated))

	assert.Len(t, l.Query(Query{LoadID: "L1"}), 2)
	assert.Len(t, l.Query(Query{UserID: "alice"}), 1)
	assert.Len(t, l.Query(Query{SuggestionID: "s1"}), 1)
	assert.Len(t, l.Query(Query{Action: model.AuditSuggestionGenerated}), 2)
	assert.Empty(t, l.Query(Query{Start: now.Add(time.Minute)}))
	last := l.Query(Query{Limit: 1})
	require.Len(t, last, 1)
	assert.Equal(t, "L2", last[0].LoadID)
	assert.Equal(t, now, last[0].Timestamp)
}

func TestSearchUsesStoreWhenConfigured(t *testing.T) {
	persisted := NewLog(1, newRedisStore(&fakeRedis{}, "", 0))
	for _, id := range []string{"L1", "L2"} {
		_, err := persisted.Append(context.Background(), model.AuditEntry{Action: model.AuditSuggestionGenerated, LoadID: id, UserID: "system"})
		require.NoError(t, err)
	}
	got, err := persisted.Search(context.Background(), Query{LoadID: "L1"})
	require.NoError(t, err)
	require.Len(t, got, 1, "evicted entry is served by the store")

	mem := NewLog(1, nil)
	_, err = mem.Append(context.Background(), model.AuditEntry{Action: model.AuditSuggestionGenerated, LoadID: "L1", UserID: "system"})
	require.NoError(t, err)
	got, err = mem.Search(context.Background(), Query{LoadID: "L1"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
