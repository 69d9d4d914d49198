package gateways

import (
	"errors"
	"fmt"
)

const Namespace = "gateways"

var (
	ErrInvalidArgument      = errors.New(Namespace + ": invalid argument")
	ErrInvalidState         = errors.New(Namespace + ": invalid state")
	ErrUnsupportedMessage   = errors.New(Namespace + ": unsupported message type")
	ErrTerminationViolation = errors.New(Namespace + ": message received for a terminated group")
	ErrInvalidConfig        = errors.New(Namespace + ": invalid configuration")
	ErrHandlerPanicked      = errors.New(Namespace + ": message handler panicked")
	ErrHandlerCancelled     = errors.New(Namespace + ": message handler cancelled")
)

// TerminationViolationError reports a message selected for a group whose
// termination message has already been selected.
// It matches ErrTerminationViolation with errors.Is.
type TerminationViolationError struct {
	GroupID   int
	MessageID string

	msg *Message
}

func (e *TerminationViolationError) Error() string {
	return fmt.Sprintf("%s: group %d, message %s", ErrTerminationViolation.Error(), e.GroupID, e.MessageID)
}

func (e *TerminationViolationError) Is(target error) bool { return target == ErrTerminationViolation }
