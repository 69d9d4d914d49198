// Package observe defines the structured events emitted while dispatching and
// the sinks that consume them.
package observe

import "time"

// Kind names a dispatch event.
type Kind string

const (
	BatchAccepted        Kind = "batch_accepted"
	BatchEmpty           Kind = "batch_empty"
	GroupStarted         Kind = "group_started"
	MessageAssigned      Kind = "message_assigned"
	MessageCompleted     Kind = "message_completed"
	MessageFailed        Kind = "message_failed"
	MessagesDropped      Kind = "messages_dropped"
	GroupCancelled       Kind = "group_cancelled"
	GroupTerminated      Kind = "group_terminated"
	TerminationViolation Kind = "termination_violation"
	DispatchFinished     Kind = "dispatch_finished"
)

// NoGroup and NoGateway mark events not tied to a group or a gateway.
const (
	NoGroup   = -1
	NoGateway = -1
)

// Event is a single observation. Fields that do not apply are left at
// NoGroup/NoGateway, empty or zero.
type Event struct {
	Kind      Kind
	Time      time.Time
	GroupID   int
	MessageID string
	Gateway   int
	// Count carries a quantity: batch size, dropped messages, pending messages.
	Count int
	// Duration is the processing time for MessageCompleted and MessageFailed.
	Duration time.Duration
	Err      error
}

// Sink consumes events. Implementations must be safe for concurrent use and
// must not block for long: Emit is called from the dispatch loop and from
// gateway goroutines.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Nop discards all events.
type Nop struct{}

func (Nop) Emit(Event) {}

type multi []Sink

// Multi fans every event out to all non-nil sinks in order.
func Multi(sinks ...Sink) Sink {
	m := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}
