package app

import (
	"errors"
	"fmt"
)

// Domain error sentinels for the server application layer.
// These enable consistent HTTP status mapping via errors.Is().

var (
	// ErrValidation indicates invalid input from the caller.
	ErrValidation = errors.New("validation error")

	// ErrSessionState indicates an operation against a session that is
	// missing or not connected.
	ErrSessionState = errors.New("session state error")
)

// ValidationError wraps ErrValidation with a descriptive message.
func ValidationError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrValidation)
}

// SessionStateError wraps ErrSessionState with a descriptive message.
func SessionStateError(msg string) error {
	return fmt.Errorf("%s: %w", msg, ErrSessionState)
}
