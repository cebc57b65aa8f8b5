package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/junctionlabs/junction-core/internal/broker"
	"github.com/junctionlabs/junction-core/internal/gateway"
	"github.com/junctionlabs/junction-core/internal/session"
	"github.com/junctionlabs/junction-core/internal/stream"
)

// Error represents a structured error response.
type Error struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeTooManyReqs  = "too_many_requests"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps domain errors onto HTTP responses.
//
// Conflict responses carry the competing party in details so callers
// can do something useful: a duplicate gateway registration reports the
// registered type, and an already-bound emitter reports the address of
// the client holding the binding.
func writeDomainError(w http.ResponseWriter, err error) {
	var unavailable *gateway.UnavailableError
	if errors.As(err, &unavailable) {
		writeJSON(w, http.StatusServiceUnavailable, Error{
			Status:  http.StatusServiceUnavailable,
			Code:    ErrCodeUnavailable,
			Message: "no gateway available",
			Details: map[string]any{"gateway_type": unavailable.Type},
		})
		return
	}

	var bound *stream.AlreadyBoundError
	if errors.As(err, &bound) {
		writeJSON(w, http.StatusConflict, Error{
			Status:  http.StatusConflict,
			Code:    ErrCodeConflict,
			Message: "session already has an emitter bound",
			Details: map[string]any{"existing_address": bound.ExistingAddress},
		})
		return
	}

	switch {
	case errors.Is(err, gateway.ErrUnknownGateway):
		writeNotFound(w, "unknown gateway")
	case errors.Is(err, session.ErrUnknownSession):
		writeNotFound(w, "unknown session")
	case errors.Is(err, gateway.ErrDuplicateRegistration):
		writeError(w, http.StatusConflict, ErrCodeConflict, "gateway id already registered with a different type")
	case errors.Is(err, gateway.ErrInvalidType):
		writeBadRequest(w, "invalid gateway type")
	case errors.Is(err, broker.ErrInvalidRequest):
		writeBadRequest(w, "invalid access request")
	case errors.Is(err, broker.ErrAccessInProgress):
		writeError(w, http.StatusTooManyRequests, ErrCodeTooManyReqs, "access request already in progress; retry shortly")
	case errors.Is(err, session.ErrSessionLimit):
		writeError(w, http.StatusTooManyRequests, ErrCodeTooManyReqs, "session limit reached")
	default:
		writeInternalError(w, "internal server error")
	}
}
