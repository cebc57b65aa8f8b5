package protocol

import (
	"context"

	"github.com/junctionlabs/junction-core/internal/stream"
)

// Client is the protocol-client instance a session exclusively owns: a
// live connection to the object event plane that surfaces events for
// the session's stream.
//
// Implementations must tolerate Close being called more than once and
// must close the Events channel on Close so downstream pumps terminate.
type Client interface {
	// Start connects the client. Must be called before Events.
	Start(ctx context.Context) error

	// Events yields object events until the client closes.
	Events() <-chan stream.Event

	// Close disconnects and releases resources. Idempotent.
	Close() error
}

// Params carries per-session client options supplied at session open.
type Params struct {
	// ObjectIDs scopes the client to specific objects. Empty means all.
	ObjectIDs []string `json:"object_ids,omitempty"`
}

// Factory builds a protocol client for a new session.
type Factory func(params Params) Client
