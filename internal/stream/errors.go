package stream

import (
	"errors"
	"fmt"
)

// Sentinel errors for stream operations. Check with errors.Is().
var (
	// ErrEmitterAlreadyBound is the base error wrapped by AlreadyBoundError.
	ErrEmitterAlreadyBound = errors.New("stream: emitter already bound for session")

	// ErrNotBound is returned when emitting to a session with no live binding.
	ErrNotBound = errors.New("stream: no emitter bound for session")
)

// AlreadyBoundError reports a bind attempt against a session that
// already has a live emitter. It carries the competing client address
// so the caller can decide whether to force-unbind and retry.
type AlreadyBoundError struct {
	SessionID       string
	ExistingAddress string
}

func (e *AlreadyBoundError) Error() string {
	return fmt.Sprintf("stream: session %q already has an emitter bound from %q",
		e.SessionID, e.ExistingAddress)
}

func (e *AlreadyBoundError) Unwrap() error {
	return ErrEmitterAlreadyBound
}
