package session

import "errors"

// Sentinel errors for session operations. Check with errors.Is().
var (
	// ErrUnknownSession is returned for a stale or never-opened session
	// id. The caller should re-initialize.
	ErrUnknownSession = errors.New("session: unknown session")

	// ErrSessionLimit is returned when opening a new session would
	// exceed the configured maximum.
	ErrSessionLimit = errors.New("session: session limit reached")
)
