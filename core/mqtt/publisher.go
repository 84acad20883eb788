package mqtt

import (
	"context"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// DecisionPublisher forwards committed dispatch decisions to downstream
// consumers (driver apps, TMS integrations).
type DecisionPublisher interface {
	// PublishDecision sends one decision. A returned error never revokes
	// the decision.
	PublishDecision(ctx context.Context, d model.DispatcherDecision) error
}
