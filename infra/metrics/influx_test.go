package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.lines = append(l.lines, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (l *lineRecorder) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return l.lines[len(l.lines)-1]
}

func TestInfluxSink_RecordSolve(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	require.NoError(t, sink.RecordSolve(coremetrics.SolveRecord{
		Backend:     "quantum_inspired",
		Requested:   "aws_braket",
		ProblemType: model.ProblemLoadAssignment,
		Fallback:    true,
		Assignments: 3,
		Cost:        12.3456,
		Duration:    1500 * time.Millisecond,
		Time:        now,
	}))

	p := write.NewPointWithMeasurement("optimizer_solve").
		AddTag("backend", "quantum_inspired").
		AddTag("problem_type", "load_assignment").
		AddTag("fallback", "true").
		AddField("assignments", 3).
		AddField("cost", 12.346).
		AddField("duration_ms", 1500.0).
		AddTag("requested", "aws_braket").
		SetTime(now)
	assert.Equal(t, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)), rec.last())
}

func TestInfluxSink_RecordDecisionAndDispatch(t *testing.T) {
	rec := &lineRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	require.NoError(t, sink.RecordDecision(coremetrics.DecisionRecord{Action: model.AuditManualOverride, UserID: "alice", Time: time.Now()}))
	assert.Contains(t, rec.last(), "human_decision,action=manual_override,user_id=alice count=1i")

	require.NoError(t, sink.RecordDispatch(coremetrics.DispatchRecord{TotalLoads: 4, AssignedLoads: 3, RulesApplied: []string{"proximity"}, Time: time.Now()}))
	assert.Contains(t, rec.last(), "dispatch_pass,component=dispatcher")
	assert.Contains(t, rec.last(), "assigned_loads=3i")
	assert.Contains(t, rec.last(), `rules="proximity"`)

	require.NoError(t, sink.RecordBackendAttempt(coremetrics.BackendAttemptRecord{Backend: "ibm_quantum", Action: "failure", Err: "boom", Time: time.Now()}))
	assert.True(t, strings.HasPrefix(rec.last(), "backend_attempt,"))
	assert.Contains(t, rec.last(), "action=failure")
	assert.Contains(t, rec.last(), "backend=ibm_quantum")
	assert.Contains(t, rec.last(), `error="boom"`)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called)
}

func TestNewInfluxSinkWithFallback_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"influxdb","status":"pass","checks":[]}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL, "tok", "org", "bucket")
	s, ok := sink.(*InfluxSink)
	require.True(t, ok, "expected InfluxSink, got %T", sink)
	s.Close()
}
