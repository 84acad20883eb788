package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	"github.com/kilianp07/fleetdispatch/core/logger"
	"github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// Manager owns the backend registry and routes solves through the fallback
// chain: the preferred backend, then the default one.
type Manager struct {
	mu          sync.RWMutex
	backends    map[string]Backend
	defaultName string
	logger      logger.Logger
	metrics     metrics.MetricsSink
	bus         eventbus.EventBus
}

// NewManager creates an empty manager. defaultName is the last resort of
// every chain and defaults to quantum_inspired.
func NewManager(defaultName string, log logger.Logger) *Manager {
	if defaultName == "" {
		defaultName = QuantumInspired
	}
	return &Manager{
		backends:    make(map[string]Backend),
		defaultName: defaultName,
		logger:      logger.OrNop(log),
		metrics:     metrics.NopSink{},
	}
}

// NewDefaultManager registers the quantum-inspired, LP and hardware backends
// with default settings. Hardware backends stay unavailable without tokens.
func NewDefaultManager(log logger.Logger) *Manager {
	m := NewManager(QuantumInspired, log)
	qi, _ := NewQuantumInspiredBackend(DefaultQuantumInspiredConfig())
	m.RegisterBackend(qi)
	m.RegisterBackend(NewLPBackend(DefaultLPConfig()))
	for _, name := range []string{IBMQuantum, AWSBraket, AzureQuantum} {
		m.RegisterBackend(NewHardwareBackend(name, HardwareConfig{}, qi))
	}
	return m
}

// SetEventBus configures the bus receiving BackendEvents.
func (m *Manager) SetEventBus(bus eventbus.EventBus) {
	m.mu.Lock()
	m.bus = bus
	m.mu.Unlock()
}

// SetMetricsSink configures the sink receiving solve records.
func (m *Manager) SetMetricsSink(sink metrics.MetricsSink) {
	m.mu.Lock()
	m.metrics = metrics.OrNop(sink)
	m.mu.Unlock()
}

// RegisterBackend adds b or replaces the backend registered under its name.
func (m *Manager) RegisterBackend(b Backend) {
	if b == nil {
		return
	}
	m.mu.Lock()
	m.backends[b.Name()] = b
	m.mu.Unlock()
}

// Backend returns the backend registered under name.
func (m *Manager) Backend(name string) (Backend, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.backends[name]
	return b, ok
}

// DefaultBackend returns the name of the last-resort backend.
func (m *Manager) DefaultBackend() string { return m.defaultName }

// AvailableBackends returns the sorted names of available backends.
func (m *Manager) AvailableBackends() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.backends))
	for name, b := range m.backends {
		if b.IsAvailable() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Describe returns name, availability and capabilities of every backend.
func (m *Manager) Describe() []BackendInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BackendInfo, 0, len(m.backends))
	for name, b := range m.backends {
		out = append(out, BackendInfo{
			Name:         name,
			Available:    b.IsAvailable(),
			Default:      name == m.defaultName,
			Capabilities: b.Capabilities(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BackendInfo is the public description of a registered backend.
type BackendInfo struct {
	Name         string       `json:"name"`
	Available    bool         `json:"available"`
	Default      bool         `json:"default"`
	Capabilities Capabilities `json:"capabilities"`
}

// Solve runs p on preferred, falling back to the default backend. The
// returned metadata tells which backend answered and whether a fallback
// happened. When the chain is exhausted a *NoBackendError is returned.
func (m *Manager) Solve(ctx context.Context, p model.OptimizationProblem, preferred string) (model.OptimizationSolution, error) {
	if preferred == "" {
		preferred = m.defaultName
	}
	m.mu.RLock()
	bus, sink := m.bus, m.metrics
	m.mu.RUnlock()

	chain := []string{preferred}
	if preferred != m.defaultName {
		chain = append(chain, m.defaultName)
	}

	var attempts []Attempt
	for _, name := range chain {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Backend: name, Err: err})
			break
		}
		b, err := m.eligible(name, p)
		if err != nil {
			attempts = append(attempts, Attempt{Backend: name, Err: err})
			m.publish(bus, events.BackendEvent{Backend: name, Requested: preferred, ProblemType: p.Type, Action: events.BackendSkipped, Err: err})
			m.logger.Warnf("backend %s skipped: %v", name, err)
			solvesTotal.WithLabelValues(name, "skipped").Inc()
			continue
		}

		m.publish(bus, events.BackendEvent{Backend: name, Requested: preferred, ProblemType: p.Type, Action: events.BackendAttempt})
		start := time.Now()
		sol, err := m.run(ctx, b, p)
		elapsed := time.Since(start)
		if err != nil {
			attempts = append(attempts, Attempt{Backend: name, Err: err})
			m.publish(bus, events.BackendEvent{Backend: name, Requested: preferred, ProblemType: p.Type, Action: events.BackendFailure, Err: err})
			m.logger.Warnf("backend %s failed: %v", name, err)
			solvesTotal.WithLabelValues(name, "failure").Inc()
			m.recordSolve(sink, metrics.SolveRecord{Backend: name, Requested: preferred, ProblemType: p.Type, Duration: elapsed, Err: err.Error(), Time: start})
			continue
		}

		fallback := name != preferred
		sol.Metadata.Backend = b.Name()
		sol.Metadata.RequestedBackend = preferred
		sol.Metadata.FallbackUsed = fallback
		if sol.Metadata.ExecutionTime == 0 {
			sol.Metadata.ExecutionTime = elapsed
		}

		solvesTotal.WithLabelValues(name, "success").Inc()
		solveDuration.WithLabelValues(name, string(p.Type)).Observe(elapsed.Seconds())
		m.publish(bus, events.BackendEvent{Backend: name, Requested: preferred, ProblemType: p.Type, Action: events.BackendSuccess})
		if fallback {
			fallbacksTotal.WithLabelValues(preferred, name).Inc()
			m.publish(bus, events.BackendEvent{Backend: name, Requested: preferred, ProblemType: p.Type, Action: events.BackendFallback, Err: lastErr(attempts)})
			m.logger.Warnf("backend %s unavailable for %s, fell back to %s", preferred, p.Type, name)
		}
		m.recordSolve(sink, metrics.SolveRecord{
			Backend:     name,
			Requested:   preferred,
			ProblemType: p.Type,
			Fallback:    fallback,
			Assignments: len(sol.Assignments),
			Cost:        sol.Cost,
			Duration:    elapsed,
			Time:        start,
		})
		m.logger.Debugw("backend solve", map[string]any{
			"backend":     name,
			"requested":   preferred,
			"type":        string(p.Type),
			"assignments": len(sol.Assignments),
			"iterations":  sol.Metadata.Iterations,
			"termination": string(sol.Metadata.Termination),
		})
		return sol, nil
	}
	return model.OptimizationSolution{}, &NoBackendError{Requested: preferred, ProblemType: p.Type, Attempts: attempts}
}

// eligible returns the backend when it is registered, available, supports
// the problem type and accepts its size.
func (m *Manager) eligible(name string, p model.OptimizationProblem) (Backend, error) {
	b, ok := m.Backend(name)
	if !ok {
		return nil, fmt.Errorf("%s not registered: %w", name, ErrBackendUnavailable)
	}
	if !b.IsAvailable() {
		return nil, fmt.Errorf("%s: %w", name, ErrBackendUnavailable)
	}
	caps := b.Capabilities()
	if !caps.Supports(p.Type) {
		return nil, fmt.Errorf("%s: %w %q", name, ErrUnsupportedProblemType, p.Type)
	}
	if caps.MaxProblemSize > 0 && p.Size() > caps.MaxProblemSize {
		return nil, fmt.Errorf("%s: %w (%d > %d)", name, ErrProblemTooLarge, p.Size(), caps.MaxProblemSize)
	}
	return b, nil
}

// run bounds the call by the backend's execution time limit.
func (m *Manager) run(ctx context.Context, b Backend, p model.OptimizationProblem) (model.OptimizationSolution, error) {
	if limit := b.Capabilities().ExecutionTimeLimit; limit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}
	return b.Solve(ctx, p)
}

func (m *Manager) publish(bus eventbus.EventBus, ev events.BackendEvent) {
	if bus != nil {
		bus.Publish(ev)
	}
}

func (m *Manager) recordSolve(sink metrics.MetricsSink, rec metrics.SolveRecord) {
	if err := sink.RecordSolve(rec); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	if !rec.Fallback {
		return
	}
	if fr, ok := sink.(metrics.FallbackRecorder); ok {
		if err := fr.RecordFallback(metrics.FallbackRecord{Requested: rec.Requested, Backend: rec.Backend, Time: rec.Time}); err != nil {
			m.logger.Errorf("metrics error: %v", err)
		}
	}
}

func lastErr(attempts []Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	return attempts[len(attempts)-1].Err
}
