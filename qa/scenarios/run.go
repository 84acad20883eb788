package scenarios

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fleetdispatch/core/dispatch"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/infra/logger"
	"github.com/kilianp07/fleetdispatch/infra/metrics"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

var errBrokerDown = errors.New("broker down")

// mockPublisher fails for decisions assigned to the configured drivers.
type mockPublisher struct {
	mu          sync.Mutex
	failDrivers map[string]bool
	sent        []string
}

func newMockPublisher(fail []string) *mockPublisher {
	p := &mockPublisher{failDrivers: make(map[string]bool, len(fail))}
	for _, id := range fail {
		p.failDrivers[id] = true
	}
	return p
}

func (p *mockPublisher) PublishDecision(_ context.Context, d model.DispatcherDecision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failDrivers[d.DriverID] {
		return errBrokerDown
	}
	p.sent = append(p.sent, d.LoadID)
	return nil
}

// RunScenario dispatches the scenario snapshot with the rule engine and
// reports every mismatch against the expected outcome.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	bus := eventbus.New()
	defer bus.Close()

	eng, err := dispatch.NewEngine(nil, dispatch.Config{}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	eng.SetMetricsSink(sink)
	eng.SetEventBus(bus)
	eng.SetPublisher(newMockPublisher(sc.FailDrivers))

	res, err := eng.Dispatch(context.Background(), sc.Snapshot)
	if err != nil {
		t.Fatalf("scenario %s: dispatch: %v", sc.Name, err)
	}

	got := make(map[string]model.DispatcherDecision, len(res.Decisions))
	for _, d := range res.Decisions {
		if _, dup := got[d.LoadID]; dup {
			t.Errorf("scenario %s: load %s assigned twice", sc.Name, d.LoadID)
		}
		got[d.LoadID] = d
	}
	for load, drv := range sc.Expected.Assignments {
		d, ok := got[load]
		if !ok {
			t.Errorf("scenario %s: load %s not assigned, expected %s", sc.Name, load, drv)
			continue
		}
		if d.DriverID != drv {
			t.Errorf("scenario %s: load %s assigned to %s, expected %s", sc.Name, load, d.DriverID, drv)
		}
	}
	if len(got) != len(sc.Expected.Assignments) {
		t.Errorf("scenario %s: expected %d assignments, got %d", sc.Name, len(sc.Expected.Assignments), len(got))
	}
	for load, rule := range sc.Expected.Rules {
		if d := got[load]; d.RuleID != rule {
			t.Errorf("scenario %s: load %s decided by %q, expected %q", sc.Name, load, d.RuleID, rule)
		}
	}
	if !sameSet(res.UnassignedLoads, sc.Expected.Unassigned) {
		t.Errorf("scenario %s: unassigned %v, expected %v", sc.Name, res.UnassignedLoads, sc.Expected.Unassigned)
	}
	failed := make([]string, 0, len(res.PublishErrors))
	for load := range res.PublishErrors {
		failed = append(failed, load)
	}
	if !sameSet(failed, sc.Expected.PublishFailed) {
		t.Errorf("scenario %s: publish failed for %v, expected %v", sc.Name, failed, sc.Expected.PublishFailed)
	}
	if sc.Expected.RulesApplied != nil && !equal(res.Metadata.RulesApplied, sc.Expected.RulesApplied) {
		t.Errorf("scenario %s: rules applied %v, expected %v", sc.Name, res.Metadata.RulesApplied, sc.Expected.RulesApplied)
	}
}

func sameSet(a, b []string) bool {
	a = append([]string(nil), a...)
	b = append([]string(nil), b...)
	sort.Strings(a)
	sort.Strings(b)
	return equal(a, b)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
