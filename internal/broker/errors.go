package broker

import "errors"

// Sentinel errors for broker operations. Check with errors.Is().
var (
	// ErrAccessInProgress is returned when a second access request
	// arrives for a caller identity whose first request has not
	// completed. Callers should retry shortly.
	ErrAccessInProgress = errors.New("broker: access request already in progress for this caller")

	// ErrInvalidRequest is returned when a request is missing its caller
	// identity or names an unknown caller kind.
	ErrInvalidRequest = errors.New("broker: invalid access request")
)
