package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/audit"
	"github.com/kilianp07/fleetdispatch/core/backend"
	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/optimizer"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

var (
	day     = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	dallas  = model.Location{Lat: 32.7767, Lng: -96.7970}
	nearby  = model.Location{Lat: 32.80, Lng: -96.80}
	houston = model.Location{Lat: 29.7604, Lng: -95.3698}
	avail   = model.TimeWindow{Start: day, End: day.Add(24 * time.Hour)}
)

func load(id string, prio int) model.Load {
	return model.Load{ID: id, Pickup: dallas, Delivery: houston, Weight: 1000, Priority: prio}
}

func driver(id string, rating, onTime float64, loc model.Location) model.Driver {
	return model.Driver{ID: id, Location: loc, Availability: avail, Performance: model.Performance{Rating: rating, OnTimeRate: onTime}}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(nil, audit.NewLog(0, nil), cfg, nil)
	require.NoError(t, err)
	return e
}

func TestScoreCandidate(t *testing.T) {
	far := ScoreCandidate(load("L1", 5), driver("D1", 2.5, 0.5, houston))
	require.True(t, far.Eligible)
	assert.Zero(t, far.Proximity)
	assert.InDelta(t, 77.5, far.Total, 1e-9)
	assert.InDelta(t, 0.775, far.Confidence(), 1e-9)
	assert.Len(t, far.Factors(), 4)

	best := ScoreCandidate(load("L1", 5), driver("D2", 5, 1, dallas))
	assert.Equal(t, 100.0, best.Total, "clamped")

	haz := load("H", 5)
	haz.SpecialRequirements = []string{"hazmat", "tanker"}
	d := driver("D3", 5, 1, dallas)
	d.Certifications = []string{"hazmat"}
	s := ScoreCandidate(haz, d)
	assert.False(t, s.Eligible)
	assert.Equal(t, 0.5, s.Coverage)
}

func TestSuggestionsAreAdvisory(t *testing.T) {
	e := newTestEngine(t, Config{})
	res, err := e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L1", 9), load("L2", 3)},
		Drivers: []model.Driver{driver("D1", 4.8, 0.9, nearby), driver("D2", 3.0, 0.7, nearby)},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.Suggestions)
	assert.True(t, res.RequiresHumanReview())

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var decoded struct {
		RequiresHumanReview bool `json:"requires_human_review"`
		Suggestions         []struct {
			RequiresReview bool `json:"requires_review"`
		} `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.RequiresHumanReview)
	for _, s := range decoded.Suggestions {
		assert.True(t, s.RequiresReview)
	}
}

func TestSuggestionsRankedAndAudited(t *testing.T) {
	e := newTestEngine(t, Config{MaxPerLoad: 2})
	res, err := e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L2", 3), load("L1", 9)},
		Drivers: []model.Driver{driver("LOW", 3.0, 0.7, nearby), driver("TOP", 4.8, 0.95, nearby), driver("FAR", 5, 1, houston)},
	})
	require.NoError(t, err)

	require.Len(t, res.Suggestions, 4)
	assert.Equal(t, "L1", res.Suggestions[0].LoadID)
	assert.Equal(t, "TOP", res.Suggestions[0].DriverID)
	assert.Equal(t, "LOW", res.Suggestions[1].DriverID)
	assert.GreaterOrEqual(t, res.Suggestions[0].Score, res.Suggestions[1].Score)
	assert.Equal(t, model.SourceRules, res.Suggestions[0].Source)
	assert.Equal(t, 2, res.Metadata.SuggestedLoads)
	assert.Empty(t, res.UnprocessedLoads)

	entries := e.AuditLog()
	require.Len(t, entries, 4)
	for i, en := range entries {
		assert.Equal(t, model.AuditSuggestionGenerated, en.Action)
		assert.Equal(t, res.Suggestions[i].ID, en.SuggestionID)
		assert.Equal(t, SystemUser, en.UserID)
	}
}

func TestSuggestionsAreIdempotent(t *testing.T) {
	e := newTestEngine(t, Config{})
	snap := model.Snapshot{
		Loads:   []model.Load{load("L1", 9), load("L2", 3), load("L3", 3)},
		Drivers: []model.Driver{driver("A", 4.0, 0.8, nearby), driver("B", 4.0, 0.8, nearby), driver("C", 4.5, 0.9, dallas)},
	}
	first, err := e.GenerateSuggestions(context.Background(), snap)
	require.NoError(t, err)
	second, err := e.GenerateSuggestions(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, first.Suggestions, second.Suggestions)
	assert.Equal(t, first.UnprocessedLoads, second.UnprocessedLoads)
	assert.Equal(t, SuggestionID("L1", "C", model.SourceRules), first.Suggestions[0].ID)
}

func TestOptimizerSuggestionsAreIdempotent(t *testing.T) {
	opt, err := optimizer.New(backend.NewDefaultManager(nil), optimizer.Config{}, nil)
	require.NoError(t, err)
	e, err := NewEngine(opt, audit.NewLog(0, nil), Config{UseOptimization: true}, nil)
	require.NoError(t, err)

	var snap model.Snapshot
	for i := 0; i < 12; i++ {
		l := load(fmt.Sprintf("L%02d", i), i%10+1)
		l.Pickup = model.Location{Lat: 31 + float64(i%4)*0.5, Lng: -97 + float64(i%3)*0.5}
		snap.Loads = append(snap.Loads, l)
	}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("D%d", i)
		snap.Drivers = append(snap.Drivers, driver(id, 3+float64(i%3)*0.5, 0.8,
			model.Location{Lat: 31 + float64(i)*0.4, Lng: -97 + float64(i%2)*0.8}))
		snap.Trucks = append(snap.Trucks, model.Truck{ID: fmt.Sprintf("T%d", i), Capacity: 40000, DriverID: id})
	}

	first, err := e.GenerateSuggestions(context.Background(), snap)
	require.NoError(t, err)
	require.NotEmpty(t, first.Suggestions)
	for i := 0; i < 3; i++ {
		again, err := e.GenerateSuggestions(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, first.Suggestions, again.Suggestions)
		assert.Equal(t, first.UnprocessedLoads, again.UnprocessedLoads)
	}
}

func TestThresholdAndHazmatUnprocessed(t *testing.T) {
	e := newTestEngine(t, Config{MinConfidence: 0.8})
	haz := load("H1", 5)
	haz.SpecialRequirements = []string{"hazmat"}
	haz.TimeWindow = &model.TimeWindow{Start: day.Add(8 * time.Hour), End: day.Add(12 * time.Hour)}
	weak := load("WEAK", 1)
	weak.TimeWindow = haz.TimeWindow
	cert := driver("CERT", 5, 1, dallas)
	cert.Certifications = []string{"hazmat"}
	cert.Availability = model.TimeWindow{Start: day.Add(13 * time.Hour), End: day.Add(20 * time.Hour)}

	res, err := e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{haz, weak},
		Drivers: []model.Driver{driver("PLAIN", 2.5, 0.5, houston), cert},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Suggestions)
	assert.Equal(t, []string{"H1", "WEAK"}, res.UnprocessedLoads)
	assert.Zero(t, res.Metadata.AverageConfidence)
}

func TestLogHumanDecision(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	e := newTestEngine(t, Config{})
	bus := eventbus.New()
	defer bus.Close()
	ch := bus.Subscribe()
	e.SetEventBus(bus)

	res, err := e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L1", 9)},
		Drivers: []model.Driver{driver("D1", 4.8, 0.9, nearby)},
	})
	require.NoError(t, err)
	<-ch // suggestion event
	id := res.Suggestions[0].ID

	entry, err := e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: id, UserID: "alice", Decision: DecisionAccepted})
	require.NoError(t, err)
	assert.Equal(t, model.AuditSuggestionAccepted, entry.Action)
	assert.Equal(t, "L1", entry.LoadID)
	assert.Equal(t, "D1", entry.DriverID)

	entry, err = e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: id, UserID: "bob", Decision: DecisionOverride, OverrideDriverID: "D9", Reason: "driver called in"})
	require.NoError(t, err)
	assert.Equal(t, model.AuditManualOverride, entry.Action)
	assert.Equal(t, "D9", entry.DriverID)
	assert.Equal(t, "D1", entry.Metadata["suggested_driver_id"])

	log := e.AuditLog()
	require.Len(t, log, 3)
	assert.Equal(t, "alice", log[1].UserID)
	assert.Equal(t, 1.0, testutil.ToFloat64(decisionsTotal.WithLabelValues(string(model.AuditManualOverride))))

	select {
	case ev := <-ch:
		de, ok := ev.(events.DecisionEvent)
		require.True(t, ok)
		assert.Equal(t, "alice", de.UserID)
	case <-time.After(time.Second):
		t.Fatal("no decision event")
	}
}

func TestLogHumanDecisionErrors(t *testing.T) {
	e := newTestEngine(t, Config{})
	_, err := e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: "missing", UserID: "alice", Decision: DecisionRejected})
	assert.ErrorIs(t, err, ErrUnknownSuggestion)

	_, err = e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: "x", UserID: "alice", Decision: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidDecision)
	_, err = e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: "x", UserID: "alice", Decision: DecisionOverride})
	assert.ErrorIs(t, err, ErrInvalidDecision)
	_, err = e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: "x", Decision: DecisionAccepted})
	assert.ErrorIs(t, err, ErrInvalidDecision)
	assert.Empty(t, e.AuditLog())
}

// memStore is an audit.Store whose writes can be switched off.
type memStore struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	down    bool
}

func (m *memStore) Append(_ context.Context, e model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errors.New("store unavailable")
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) Query(_ context.Context, q audit.Query) ([]model.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range m.entries {
		if q.Match(e) {
			out = append(out, e)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func TestLogHumanDecisionSurfacesStoreFailure(t *testing.T) {
	store := &memStore{}
	e, err := NewEngine(nil, audit.NewLog(10, store), Config{}, nil)
	require.NoError(t, err)
	res, err := e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L1", 9)},
		Drivers: []model.Driver{driver("D1", 4.8, 0.9, nearby)},
	})
	require.NoError(t, err)

	store.down = true
	_, err = e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: res.Suggestions[0].ID, UserID: "alice", Decision: DecisionAccepted})
	require.Error(t, err)
	assert.Len(t, e.AuditLog(), 1, "failed decision is not retained")

	_, err = e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L1", 9)},
		Drivers: []model.Driver{driver("D1", 4.8, 0.9, nearby)},
	})
	assert.Error(t, err, "generation fails when the audit trail is unavailable")
}

func TestLogHumanDecisionFindsEvictedSuggestionInStore(t *testing.T) {
	store := &memStore{}
	e, err := NewEngine(nil, audit.NewLog(1, store), Config{}, nil)
	require.NoError(t, err)
	res, err := e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L1", 9), load("L2", 5)},
		Drivers: []model.Driver{driver("D1", 4.8, 0.9, nearby)},
	})
	require.NoError(t, err)
	require.Len(t, res.Suggestions, 2)

	entry, err := e.LogHumanDecision(context.Background(), HumanDecision{SuggestionID: res.Suggestions[0].ID, UserID: "alice", Decision: DecisionRejected})
	require.NoError(t, err)
	assert.Equal(t, "L1", entry.LoadID)
}

type fakeOptimizer struct {
	res optimizer.Result
	err error
}

func (f *fakeOptimizer) Optimize(context.Context, optimizer.Request) (optimizer.Result, error) {
	return f.res, f.err
}

func TestOptimizerSuggestions(t *testing.T) {
	fo := &fakeOptimizer{res: optimizer.Result{
		Assignments: []optimizer.TMSAssignment{{LoadID: "L1", DriverID: "D2", TruckID: "T2", EstimatedCost: 120}},
		Metadata:    model.SolutionMetadata{Backend: "quantum_inspired", RequestedBackend: "aws_braket", FallbackUsed: true, Confidence: 0.95},
	}}
	e, err := NewEngine(fo, audit.NewLog(0, nil), Config{UseOptimization: true, Backend: "aws_braket"}, nil)
	require.NoError(t, err)
	res, err := e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L1", 9), load("L2", 2)},
		Drivers: []model.Driver{driver("D1", 4.8, 0.9, nearby), driver("D2", 3.0, 0.7, nearby)},
	})
	require.NoError(t, err)

	require.Equal(t, "L1", res.Suggestions[0].LoadID)
	assert.Equal(t, model.SourceOptimizer, res.Suggestions[0].Source)
	assert.Equal(t, "D2", res.Suggestions[0].DriverID)
	assert.Contains(t, res.Suggestions[0].Factors, "fallback from aws_braket")
	assert.Equal(t, "quantum_inspired", res.Metadata.Backend)
	for _, s := range res.Suggestions[1:] {
		assert.Equal(t, "L2", s.LoadID)
		assert.Equal(t, model.SourceRules, s.Source)
	}

	fo.err = errors.New("boom")
	res, err = e.GenerateSuggestions(context.Background(), model.Snapshot{
		Loads:   []model.Load{load("L1", 9)},
		Drivers: []model.Driver{driver("D1", 4.8, 0.9, nearby)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SourceRules, res.Suggestions[0].Source)
}
