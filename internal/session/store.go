package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
	"github.com/junctionlabs/junction-core/internal/protocol"
)

// SessionMetrics records session store occupancy.
// Satisfied by the metrics client.
type SessionMetrics interface {
	WriteSessionGauge(active, bound int)
}

// Store maps session ids to live sessions.
//
// Get-or-create is atomic: the store lock covers both the lookup and
// the placeholder insert, so two concurrent opens for the same new id
// produce exactly one protocol client and the loser observes the
// winner's session. Client startup happens outside the lock; a failed
// startup removes the placeholder so later opens retry cleanly.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	factory       protocol.Factory
	idleTimeout   time.Duration
	sweepInterval time.Duration
	maxSessions   int

	logger  *logging.Logger
	metrics SessionMetrics

	// onClose is invoked after a session closes, with the session id.
	// Wired to the stream binder so a closing session drops its emitter.
	onClose func(sessionID string)

	// emitterBound reports whether a session has a live emitter.
	// Sessions with one are exempt from the idle sweep.
	emitterBound func(sessionID string) bool
}

// NewStore creates a session store.
func NewStore(cfg config.SessionConfig, factory protocol.Factory, logger *logging.Logger) *Store {
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Store{
		sessions:      make(map[string]*Session),
		factory:       factory,
		idleTimeout:   cfg.IdleTimeout,
		sweepInterval: sweep,
		maxSessions:   cfg.MaxSessions,
		logger:        logger.With("component", "session_store"),
	}
}

// SetMetrics attaches a metrics writer.
func (st *Store) SetMetrics(m SessionMetrics) { st.metrics = m }

// SetOnClose registers a hook invoked after each session close.
func (st *Store) SetOnClose(fn func(sessionID string)) { st.onClose = fn }

// SetEmitterGate registers the binding check used by the idle sweep.
func (st *Store) SetEmitterGate(fn func(sessionID string) bool) { st.emitterBound = fn }

// Open returns the session for id, creating it when absent.
//
// An empty id gets a generated UUID. Re-opening an INITIALIZED or
// ACTIVE session is idempotent and returns the existing session;
// created reports whether this call made a new one.
func (st *Store) Open(ctx context.Context, id string, params protocol.Params) (sess *Session, created bool, err error) {
	if id == "" {
		id = uuid.NewString()
	}

	st.mu.Lock()
	if existing, ok := st.sessions[id]; ok {
		if existing.State() != StateClosed {
			st.mu.Unlock()
			existing.Touch()
			return existing, false, nil
		}
		// A CLOSED session still in the map is a programming bug: close
		// removes entries. Resolve deterministically by discarding it.
		st.logger.Error("closed session found in store, discarding",
			"session_id", id,
			"created_at", existing.CreatedAt,
		)
		delete(st.sessions, id)
	}

	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		st.mu.Unlock()
		return nil, false, fmt.Errorf("%w: %d sessions", ErrSessionLimit, st.maxSessions)
	}

	now := time.Now()
	sess = &Session{
		ID:           id,
		CreatedAt:    now,
		state:        StateInitialized,
		lastActivity: now,
		client:       st.factory(params),
	}
	st.sessions[id] = sess
	st.mu.Unlock()

	// Start the client outside the store lock; other sessions keep moving.
	if err := sess.client.Start(ctx); err != nil {
		st.mu.Lock()
		if current, ok := st.sessions[id]; ok && current == sess {
			delete(st.sessions, id)
		}
		st.mu.Unlock()
		sess.close()
		return nil, false, fmt.Errorf("session: starting protocol client for %q: %w", id, err)
	}
	sess.activate()

	st.logger.Info("session opened", "session_id", id)
	return sess, true, nil
}

// Get returns the session for id, or ErrUnknownSession when absent or closed.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()

	if !ok || sess.State() == StateClosed {
		return nil, ErrUnknownSession
	}
	return sess, nil
}

// Touch records activity for id. Unknown ids are ignored.
func (st *Store) Touch(id string) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	st.mu.Unlock()

	if ok {
		sess.Touch()
	}
}

// Close tears down a session: protocol client, emitter binding (via the
// onClose hook), and removal from the store. Idempotent.
func (st *Store) Close(ctx context.Context, id string) error {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	if !ok {
		return nil
	}

	if sess.close() {
		st.logger.Info("session closed", "session_id", id)
	}
	if st.onClose != nil {
		st.onClose(id)
	}
	return nil
}

// CloseAll closes every session. Used during shutdown.
func (st *Store) CloseAll(ctx context.Context) {
	for _, info := range st.List() {
		st.Close(ctx, info.ID) //nolint:errcheck // Close is idempotent and never fails
	}
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// List returns snapshots of all sessions.
func (st *Store) List() []Info {
	st.mu.Lock()
	sessions := make([]*Session, 0, len(st.sessions))
	for _, sess := range st.sessions {
		sessions = append(sessions, sess)
	}
	st.mu.Unlock()

	out := make([]Info, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Info())
	}
	return out
}

// Run executes the idle sweep until ctx is cancelled.
// Call as a goroutine after construction.
func (st *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(st.sweepInterval)
	defer ticker.Stop()

	st.logger.Info("session sweep started",
		"interval", st.sweepInterval,
		"idle_timeout", st.idleTimeout,
	)

	for {
		select {
		case <-ctx.Done():
			st.logger.Info("session sweep stopped")
			return
		case <-ticker.C:
			st.sweepOnce(ctx, time.Now())
		}
	}
}

// sweepOnce closes sessions idle past the timeout. A session with a
// live emitter is considered in use regardless of its activity time.
// This is a resource-leak guard, not caller-facing correctness.
func (st *Store) sweepOnce(ctx context.Context, now time.Time) {
	if st.idleTimeout <= 0 {
		return
	}

	var idle []string
	bound := 0

	st.mu.Lock()
	for id, sess := range st.sessions {
		if st.emitterBound != nil && st.emitterBound(id) {
			bound++
			continue
		}
		if now.Sub(sess.LastActivity()) > st.idleTimeout {
			idle = append(idle, id)
		}
	}
	active := len(st.sessions)
	st.mu.Unlock()

	for _, id := range idle {
		st.logger.Info("closing idle session", "session_id", id)
		st.Close(ctx, id) //nolint:errcheck // Close never fails
	}

	if st.metrics != nil {
		st.metrics.WriteSessionGauge(active-len(idle), bound)
	}
}
