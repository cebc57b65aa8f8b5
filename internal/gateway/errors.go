package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for registry operations. Check with errors.Is().
var (
	// ErrUnknownGateway is returned when a status report or lookup names
	// an id with no prior startup report.
	ErrUnknownGateway = errors.New("gateway: unknown gateway")

	// ErrDuplicateRegistration is returned when a startup report reuses
	// an existing id with a different gateway type. Same-type re-startup
	// is recovery, not a duplicate.
	ErrDuplicateRegistration = errors.New("gateway: id already registered with a different type")

	// ErrInvalidType is returned when a report carries an unknown gateway type.
	ErrInvalidType = errors.New("gateway: invalid gateway type")

	// ErrGatewayUnavailable is the base error wrapped by UnavailableError.
	ErrGatewayUnavailable = errors.New("gateway: no gateway available")
)

// UnavailableError reports that no ONLINE gateway of the requested type
// exists. It wraps ErrGatewayUnavailable so callers can match with
// errors.Is and recover the type with errors.As.
type UnavailableError struct {
	Type Type
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("gateway: no online gateway of type %q available", e.Type)
}

func (e *UnavailableError) Unwrap() error {
	return ErrGatewayUnavailable
}
