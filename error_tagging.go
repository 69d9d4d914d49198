package gateways

import (
	"errors"
	"fmt"
)

// MessageMetaError exposes correlation metadata for a message processing failure.
type MessageMetaError interface {
	error
	Unwrap() error
	MessageID() (string, bool)
	GroupID() int
	Sequence() (int, bool)
}

type messageTaggedError struct {
	err     error
	id      string
	groupID int
	seq     int
}

// newMessageTaggedError wraps err with the message metadata. A negative seq
// means the message was processed outside a Dispatcher assignment.
func newMessageTaggedError(err error, m *Message, seq int) error {
	if err == nil {
		return nil
	}
	return &messageTaggedError{err: err, id: m.ID(), groupID: m.GroupID(), seq: seq}
}

func (e *messageTaggedError) Error() string { return e.err.Error() }
func (e *messageTaggedError) Unwrap() error { return e.err }

func (e *messageTaggedError) MessageID() (string, bool) {
	if e.id == "" {
		return "", false
	}
	return e.id, true
}

func (e *messageTaggedError) GroupID() int { return e.groupID }

func (e *messageTaggedError) Sequence() (int, bool) {
	if e.seq < 0 {
		return 0, false
	}
	return e.seq, true
}

func (e *messageTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "message(group=%d,id=%s,seq=%d): %+v", e.groupID, e.id, e.seq, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractMessageID returns the id of the message whose processing produced err.
func ExtractMessageID(err error) (string, bool) {
	var mme MessageMetaError
	if errors.As(err, &mme) {
		return mme.MessageID()
	}
	return "", false
}

// ExtractGroupID returns the group id of the message whose processing produced err.
func ExtractGroupID(err error) (int, bool) {
	var mme MessageMetaError
	if errors.As(err, &mme) {
		return mme.GroupID(), true
	}
	return 0, false
}
