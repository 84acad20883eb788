package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/fleetdispatch/core/events"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
	"github.com/kilianp07/fleetdispatch/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records backend
// manager steps on sinks implementing BackendAttemptRecorder.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	r, ok := sink.(coremetrics.BackendAttemptRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, ok := ev.(events.BackendEvent)
				if !ok {
					continue
				}
				errStr := ""
				if e.Err != nil {
					errStr = e.Err.Error()
				}
				_ = r.RecordBackendAttempt(coremetrics.BackendAttemptRecord{
					Backend:     e.Backend,
					Requested:   e.Requested,
					ProblemType: e.ProblemType,
					Action:      e.Action,
					Err:         errStr,
					Time:        time.Now(),
				})
			}
		}
	}()
}
