// Package eventbus carries engine events (backend fallbacks, dispatch passes,
// suggestions, human decisions) from the core to observers such as loggers
// and metrics collectors. Delivery never blocks a publisher: a subscriber
// whose buffer is full misses the event and the drop is counted.
package eventbus

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the untyped bus shared by the engine components.
type Bus = TypedBus[Event]

// New creates a Bus with the default subscriber buffer.
func New() *Bus { return NewTyped[Event]() }

// NewWithBuffer creates a Bus whose subscriber channels hold size events.
func NewWithBuffer(size int) *Bus { return NewTypedWithBuffer[Event](size) }

var _ EventBus = (*Bus)(nil)
