package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
	"github.com/junctionlabs/junction-core/internal/infrastructure/mqtt"
	"github.com/junctionlabs/junction-core/internal/stream"
)

// eventBufferSize bounds the per-session event channel. A slow consumer
// drops events rather than backing up the MQTT handler goroutines.
const eventBufferSize = 256

// Subscriber is the MQTT surface the client consumes.
// Satisfied by the mqtt client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTClient surfaces object events from the MQTT event plane for one
// session. It subscribes to the object event topics named by the
// session's params (or the wildcard when unscoped) and forwards
// payloads into its event channel.
type MQTTClient struct {
	sub    Subscriber
	params Params
	logger *logging.Logger

	events chan stream.Event
	topics []string

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewMQTTClient creates a client over the given subscriber.
func NewMQTTClient(sub Subscriber, params Params, logger *logging.Logger) *MQTTClient {
	return &MQTTClient{
		sub:    sub,
		params: params,
		logger: logger.With("component", "protocol_client"),
		events: make(chan stream.Event, eventBufferSize),
	}
}

// Start subscribes to the session's object event topics.
func (c *MQTTClient) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("protocol: client already closed")
	}
	if c.started {
		return nil
	}

	topics := make([]string, 0, len(c.params.ObjectIDs))
	if len(c.params.ObjectIDs) == 0 {
		topics = append(topics, mqtt.Topics{}.AllObjectEvents())
	} else {
		for _, objectID := range c.params.ObjectIDs {
			topics = append(topics, mqtt.Topics{}.ObjectEvents(objectID))
		}
	}

	for _, topic := range topics {
		if err := c.sub.Subscribe(topic, 1, c.handleMessage); err != nil {
			// Roll back what was subscribed so a retry starts clean.
			for _, done := range c.topics {
				c.sub.Unsubscribe(done) //nolint:errcheck // Best-effort rollback
			}
			c.topics = nil
			return fmt.Errorf("protocol: subscribing to %s: %w", topic, err)
		}
		c.topics = append(c.topics, topic)
	}

	c.started = true
	return nil
}

// handleMessage converts an MQTT object event into a stream event.
// The closed check and send share the mutex so a handler in flight
// during Close never writes to the closed channel.
func (c *MQTTClient) handleMessage(topic string, payload []byte) error {
	event := stream.Event{
		Type:      stream.EventTypeObject,
		Data:      json.RawMessage(payload),
		Timestamp: time.Now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	select {
	case c.events <- event:
	default:
		c.logger.Warn("event channel full, dropping object event", "topic", topic)
	}
	return nil
}

// Events yields object events until Close.
func (c *MQTTClient) Events() <-chan stream.Event {
	return c.events
}

// Close unsubscribes and closes the event channel. Idempotent.
func (c *MQTTClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, topic := range c.topics {
		if err := c.sub.Unsubscribe(topic); err != nil {
			c.logger.Warn("unsubscribe failed on close", "topic", topic, "error", err)
		}
	}
	c.topics = nil
	close(c.events)

	return nil
}
