package observe

import "github.com/ygrebnov/gateways/internal/eventbus"

// Bus is a Sink that republishes events to subscribers.
// Slow subscribers miss events instead of stalling dispatch.
type Bus struct {
	bus *eventbus.Bus[Event]
}

// NewBus creates a Bus whose subscriber channels buffer up to size events.
// A non-positive size selects the event bus default.
func NewBus(size int) *Bus {
	if size <= 0 {
		return &Bus{bus: eventbus.New[Event]()}
	}
	return &Bus{bus: eventbus.NewBuffered[Event](size)}
}

func (b *Bus) Emit(e Event) { b.bus.Publish(e) }

// Subscribe returns a channel receiving events emitted after the call.
func (b *Bus) Subscribe() <-chan Event { return b.bus.Subscribe() }

// Unsubscribe stops delivery to sub and closes it.
func (b *Bus) Unsubscribe(sub <-chan Event) { b.bus.Unsubscribe(sub) }

// Dropped returns the number of events subscribers missed.
func (b *Bus) Dropped() uint64 { return b.bus.Dropped() }

// Close closes all subscriptions.
func (b *Bus) Close() { b.bus.Close() }
