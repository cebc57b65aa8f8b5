package session

import (
	"sync"
	"time"

	"github.com/junctionlabs/junction-core/internal/protocol"
)

// State is the lifecycle state of a session.
//
// INITIALIZED → ACTIVE → CLOSED; CLOSED is terminal and a closed id
// must be re-opened as a new session.
type State string

// Session states.
const (
	StateInitialized State = "initialized"
	StateActive      State = "active"
	StateClosed      State = "closed"
)

// Session is one browser-tab-scoped logical connection. It exclusively
// owns its protocol client for its entire lifetime.
type Session struct {
	// ID is the session identifier, caller-supplied or generated.
	ID string

	// CreatedAt is when the session entry was created.
	CreatedAt time.Time

	mu           sync.Mutex
	state        State
	lastActivity time.Time
	client       protocol.Client
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Client returns the protocol client this session owns.
func (s *Session) Client() protocol.Client {
	return s.client
}

// Touch records activity, deferring the idle sweep.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the most recent activity time.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// activate marks the session ACTIVE once its client started.
func (s *Session) activate() {
	s.mu.Lock()
	if s.state == StateInitialized {
		s.state = StateActive
	}
	s.mu.Unlock()
}

// close marks the session CLOSED and shuts down its client.
// Returns false if already closed.
func (s *Session) close() bool {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.state = StateClosed
	client := s.client
	s.mu.Unlock()

	if client != nil {
		client.Close() //nolint:errcheck // Session is going away either way
	}
	return true
}

// Info is the externally visible snapshot of a session.
type Info struct {
	ID             string    `json:"id"`
	State          State     `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Info returns a snapshot for status responses.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:             s.ID,
		State:          s.state,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.lastActivity,
	}
}
