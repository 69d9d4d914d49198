package gateways

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ygrebnov/errorc"
)

// Message is the unit of work dispatched to a Gateway.
// Every message belongs to a group identified by a non-negative integer.
// A Message is completed exactly once, by the Gateway that processed it.
type Message struct {
	id        string
	groupID   int
	terminal  bool
	payload   any
	completed atomic.Bool
}

// MessageOption configures a Message at construction.
type MessageOption func(*Message)

// WithMessageID overrides the generated message id.
func WithMessageID(id string) MessageOption {
	return func(m *Message) {
		if id != "" {
			m.id = id
		}
	}
}

// WithPayload attaches an opaque payload passed to the Handler.
func WithPayload(p any) MessageOption {
	return func(m *Message) { m.payload = p }
}

// NewMessage creates an ordinary message for the given group.
func NewMessage(groupID int, opts ...MessageOption) (*Message, error) {
	return newMessage(groupID, false, opts)
}

// NewTerminationMessage creates a message which closes its group:
// once it has been selected for dispatch, any further message of the same group
// is a protocol violation.
func NewTerminationMessage(groupID int, opts ...MessageOption) (*Message, error) {
	return newMessage(groupID, true, opts)
}

func newMessage(groupID int, terminal bool, opts []MessageOption) (*Message, error) {
	if groupID < 0 {
		return nil, errorc.With(
			ErrInvalidArgument,
			errorc.String("", "message group id cannot be negative"),
			errorc.String("group_id", strconv.Itoa(groupID)),
		)
	}
	m := &Message{id: uuid.NewString(), groupID: groupID, terminal: terminal}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// ID returns the message identifier.
func (m *Message) ID() string { return m.id }

// GroupID returns the group the message belongs to.
func (m *Message) GroupID() int { return m.groupID }

// IsTermination reports whether m is a termination message.
func (m *Message) IsTermination() bool { return m.terminal }

// Payload returns the payload attached with WithPayload, if any.
func (m *Message) Payload() any { return m.payload }

// IsCompleted reports whether processing of m has completed.
func (m *Message) IsCompleted() bool { return m.completed.Load() }

// MarkCompleted flags m as completed. Completing a message twice is an error.
func (m *Message) MarkCompleted() error {
	if !m.completed.CompareAndSwap(false, true) {
		return errorc.With(
			ErrInvalidState,
			errorc.String("", "message already completed"),
			errorc.String("message_id", m.id),
		)
	}
	return nil
}

func (m *Message) String() string {
	kind := "message"
	if m.terminal {
		kind = "termination"
	}
	return fmt.Sprintf("%s(group=%d,id=%s)", kind, m.groupID, m.id)
}
