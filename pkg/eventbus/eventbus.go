// Package eventbus defines the contract for publishing checkout lifecycle events.
package eventbus

import "context"

// Event is anything published on a Bus.
type Event interface {
	Type() string
}

// HandlerFunc handles a published event.
type HandlerFunc func(ctx context.Context, e Event) error

// Bus publishes events to registered handlers, locally or through a broker.
type Bus interface {
	Register(eventType string, handler HandlerFunc)
	Emit(ctx context.Context, event Event) error
}

// TypeRegistry maps event type names to constructors used when a broker
// backed bus decodes a payload back into a concrete event.
type TypeRegistry map[string]func() Event

// New returns a zero value for eventType, or false if it is not registered.
func (r TypeRegistry) New(eventType string) (Event, bool) {
	ctor, ok := r[eventType]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Nop discards every event.
type Nop struct{}

func (Nop) Register(string, HandlerFunc)        {}
func (Nop) Emit(context.Context, Event) error { return nil }

var _ Bus = Nop{}
