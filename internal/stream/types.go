package stream

import (
	"encoding/json"
	"time"
)

// Event types pushed through a bound emitter.
const (
	// EventTypeHeartbeat keeps the transport alive and lets the binder
	// detect dead emitters between domain events.
	EventTypeHeartbeat = "HB"

	// EventTypeObject carries an object state/event payload.
	EventTypeObject = "object"

	// EventTypeSession carries session lifecycle notices.
	EventTypeSession = "session"
)

// Event is one server-pushed message on a session's stream.
//
// IDs are assigned per binding from a monotonic counter, restarting at
// 1 when a session binds a new emitter.
type Event struct {
	ID        uint64          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Emitter is the transport half of a binding: something that can push
// events to the connected client. SSE and WebSocket transports both
// implement it.
//
// Send returning an error marks the emitter dead; the binder responds
// by unbinding and closing it.
type Emitter interface {
	Send(event Event) error
	Close() error
}

// Binding records the single live emitter attached to a session.
type Binding struct {
	SessionID     string    `json:"session_id"`
	ClientAddress string    `json:"client_address"`
	Transport     string    `json:"transport"`
	BoundAt       time.Time `json:"bound_at"`
	EventsSent    uint64    `json:"events_sent"`
}
