package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
)

// StreamMetrics records event delivery counts.
// Satisfied by the metrics client.
type StreamMetrics interface {
	WriteStreamEvent(transport string, delivered int)
}

// binding is the live state behind one session's emitter.
// Its mutex serializes send and close so bind/unbind/emit for a single
// session are linearizable; different sessions never contend.
type binding struct {
	mu            sync.Mutex
	sessionID     string
	clientAddress string
	transport     string
	boundAt       time.Time
	emitter       Emitter
	seq           uint64
	closed        bool
}

// send assigns the next event id and pushes through the emitter.
func (b *binding) send(eventType string, data json.RawMessage) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrNotBound
	}

	b.seq++
	event := Event{
		ID:        b.seq,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	if err := b.emitter.Send(event); err != nil {
		return b.seq, err
	}
	return b.seq, nil
}

// close shuts the emitter. Idempotent.
func (b *binding) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.emitter.Close() //nolint:errcheck // Transport is going away either way
}

func (b *binding) snapshot() Binding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Binding{
		SessionID:     b.sessionID,
		ClientAddress: b.clientAddress,
		Transport:     b.transport,
		BoundAt:       b.boundAt,
		EventsSent:    b.seq,
	}
}

// Binder enforces at-most-one live emitter per session and owns the
// stream heartbeat loop.
//
// Binding a second emitter while one is live is rejected with
// AlreadyBoundError rather than silently replaced: a reconnecting
// browser tab must explicitly unbind the stale stream first, so two
// tabs never fight over one session's events.
type Binder struct {
	mu       sync.RWMutex
	bindings map[string]*binding

	hbInterval time.Duration
	logger     *logging.Logger
	metrics    StreamMetrics
}

// NewBinder creates a binder with the given heartbeat interval.
func NewBinder(hbInterval time.Duration, logger *logging.Logger) *Binder {
	return &Binder{
		bindings:   make(map[string]*binding),
		hbInterval: hbInterval,
		logger:     logger.With("component", "stream_binder"),
	}
}

// SetMetrics attaches a metrics writer.
func (bd *Binder) SetMetrics(m StreamMetrics) { bd.metrics = m }

// Bind attaches an emitter to a session.
//
// Fails with AlreadyBoundError (carrying the existing client address)
// when a live binding exists. The caller is responsible for ensuring
// the session is ACTIVE before binding.
func (bd *Binder) Bind(sessionID, clientAddress, transport string, emitter Emitter) error {
	bd.mu.Lock()
	if existing, ok := bd.bindings[sessionID]; ok {
		addr := existing.clientAddress
		bd.mu.Unlock()
		return &AlreadyBoundError{SessionID: sessionID, ExistingAddress: addr}
	}
	bd.bindings[sessionID] = &binding{
		sessionID:     sessionID,
		clientAddress: clientAddress,
		transport:     transport,
		boundAt:       time.Now().UTC(),
		emitter:       emitter,
	}
	bd.mu.Unlock()

	bd.logger.Info("emitter bound",
		"session_id", sessionID,
		"client_address", clientAddress,
		"transport", transport,
	)
	return nil
}

// Unbind detaches and closes a session's emitter. Idempotent; called on
// explicit request, transport closure, and session close.
func (bd *Binder) Unbind(sessionID string) {
	bd.mu.Lock()
	b, ok := bd.bindings[sessionID]
	if ok {
		delete(bd.bindings, sessionID)
	}
	bd.mu.Unlock()

	if !ok {
		return
	}
	b.close()
	bd.logger.Info("emitter unbound",
		"session_id", sessionID,
		"client_address", b.clientAddress,
	)
}

// UnbindIf detaches the session's emitter only if it is still e.
//
// Transport handlers use this on connection teardown: by the time a
// dead connection's handler wakes up, the client may already have
// unbound and bound a fresh stream, which must not be torn down.
func (bd *Binder) UnbindIf(sessionID string, e Emitter) {
	bd.mu.Lock()
	b, ok := bd.bindings[sessionID]
	if ok && b.emitter == e {
		delete(bd.bindings, sessionID)
	} else {
		ok = false
	}
	bd.mu.Unlock()

	if !ok {
		return
	}
	b.close()
	bd.logger.Info("emitter unbound",
		"session_id", sessionID,
		"client_address", b.clientAddress,
	)
}

// Emit pushes one event to a session's bound emitter.
//
// Returns ErrNotBound when no binding exists. A transport send failure
// unbinds the emitter: a dead stream is torn down immediately rather
// than accumulating failed sends.
func (bd *Binder) Emit(sessionID, eventType string, data json.RawMessage) error {
	bd.mu.RLock()
	b, ok := bd.bindings[sessionID]
	bd.mu.RUnlock()

	if !ok {
		return ErrNotBound
	}

	_, err := b.send(eventType, data)
	if err != nil {
		bd.logger.Warn("emitter send failed, unbinding",
			"session_id", sessionID,
			"event_type", eventType,
			"error", err,
		)
		bd.unbindIfCurrent(sessionID, b)
		return err
	}

	if bd.metrics != nil {
		bd.metrics.WriteStreamEvent(b.transport, 1)
	}
	return nil
}

// Get returns a snapshot of the session's binding, if any.
func (bd *Binder) Get(sessionID string) (Binding, bool) {
	bd.mu.RLock()
	b, ok := bd.bindings[sessionID]
	bd.mu.RUnlock()

	if !ok {
		return Binding{}, false
	}
	return b.snapshot(), true
}

// Count returns the number of live bindings.
func (bd *Binder) Count() int {
	bd.mu.RLock()
	defer bd.mu.RUnlock()
	return len(bd.bindings)
}

// List returns snapshots of all live bindings.
func (bd *Binder) List() []Binding {
	bd.mu.RLock()
	current := make([]*binding, 0, len(bd.bindings))
	for _, b := range bd.bindings {
		current = append(current, b)
	}
	bd.mu.RUnlock()

	out := make([]Binding, 0, len(current))
	for _, b := range current {
		out = append(out, b.snapshot())
	}
	return out
}

// Run sends heartbeats to every live binding until ctx is cancelled.
// Call as a goroutine after construction.
func (bd *Binder) Run(ctx context.Context) {
	ticker := time.NewTicker(bd.hbInterval)
	defer ticker.Stop()

	bd.logger.Info("stream heartbeat started", "interval", bd.hbInterval)

	for {
		select {
		case <-ctx.Done():
			bd.logger.Info("stream heartbeat stopped")
			return
		case <-ticker.C:
			bd.sendHeartbeats()
		}
	}
}

// sendHeartbeats pushes an HB event to each binding; failures unbind.
func (bd *Binder) sendHeartbeats() {
	bd.mu.RLock()
	current := make([]*binding, 0, len(bd.bindings))
	for _, b := range bd.bindings {
		current = append(current, b)
	}
	bd.mu.RUnlock()

	for _, b := range current {
		if _, err := b.send(EventTypeHeartbeat, nil); err != nil {
			bd.logger.Warn("heartbeat failed, unbinding",
				"session_id", b.sessionID,
				"error", err,
			)
			bd.unbindIfCurrent(b.sessionID, b)
		}
	}
}

// unbindIfCurrent removes b only if it is still the session's live
// binding, so a failed send never tears down a replacement bound in
// the meantime.
func (bd *Binder) unbindIfCurrent(sessionID string, b *binding) {
	bd.mu.Lock()
	current, ok := bd.bindings[sessionID]
	if ok && current == b {
		delete(bd.bindings, sessionID)
	} else {
		ok = false
	}
	bd.mu.Unlock()

	if ok {
		b.close()
	}
}
