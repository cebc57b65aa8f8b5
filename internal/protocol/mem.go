package protocol

import (
	"context"
	"sync"

	"github.com/junctionlabs/junction-core/internal/stream"
)

// MemClient is an in-process protocol client for tests and MQTT-less
// deployments. Events are injected with Inject and surface on Events
// like any other client.
type MemClient struct {
	events chan stream.Event

	mu     sync.Mutex
	closed bool
}

// NewMemClient creates an in-process client.
func NewMemClient() *MemClient {
	return &MemClient{events: make(chan stream.Event, eventBufferSize)}
}

// Start is a no-op; the client is ready on construction.
func (c *MemClient) Start(ctx context.Context) error {
	return ctx.Err()
}

// Events yields injected events until Close.
func (c *MemClient) Events() <-chan stream.Event {
	return c.events
}

// Inject queues an event for delivery.
// Returns false if the client is closed or the buffer is full.
func (c *MemClient) Inject(event stream.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// Close closes the event channel. Idempotent.
func (c *MemClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}
