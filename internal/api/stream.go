package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/junctionlabs/junction-core/internal/session"
	"github.com/junctionlabs/junction-core/internal/stream"
)

// transport names recorded on bindings.
const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"
)

// errEmitterClosed is returned from Send after an emitter has been
// closed, which makes the binder unbind it.
var errEmitterClosed = errors.New("api: emitter closed")

// sseEmitter implements stream.Emitter over a text/event-stream response.
//
// Send failures and Close both mark the emitter dead and release done,
// which wakes the handler goroutine holding the response open.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
}

func newSSEEmitter(w http.ResponseWriter, flusher http.Flusher) *sseEmitter {
	return &sseEmitter{
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
	}
}

// Send writes one SSE frame and flushes it to the client.
func (e *sseEmitter) Send(event stream.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errEmitterClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	if _, err := fmt.Fprintf(e.w, "id: %d\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data); err != nil {
		e.closeLocked()
		return fmt.Errorf("writing event: %w", err)
	}
	e.flusher.Flush()
	return nil
}

// Close marks the emitter dead. Idempotent.
func (e *sseEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
	return nil
}

func (e *sseEmitter) closeLocked() {
	if !e.closed {
		e.closed = true
		close(e.done)
	}
}

// handleSessionEvents binds an SSE emitter to a session and holds the
// response open until the client disconnects or the emitter is unbound.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeInternalError(w, "streaming unsupported")
		return
	}

	emitter := newSSEEmitter(w, flusher)

	// Headers go out before Bind: a heartbeat tick may fire the moment
	// the binding exists.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := s.binder.Bind(id, r.RemoteAddr, transportSSE, emitter); err != nil {
		// Too late for a plain error status; report in-band and end the stream.
		var bound *stream.AlreadyBoundError
		if errors.As(err, &bound) {
			fmt.Fprintf(w, "event: error\ndata: {\"code\":%q,\"existing_address\":%q}\n\n", ErrCodeConflict, bound.ExistingAddress)
			flusher.Flush()
		}
		return
	}

	go s.pumpSessionEvents(emitter.done, id, sess)

	select {
	case <-r.Context().Done():
		s.binder.UnbindIf(id, emitter)
	case <-emitter.done:
		// Unbound elsewhere (explicit unbind, session close, or send failure).
	}
}

// pumpSessionEvents forwards protocol-client events into the session's
// bound emitter until the binding dies or the client's event channel
// closes. Each delivered event refreshes the session's activity clock.
func (s *Server) pumpSessionEvents(done <-chan struct{}, id string, sess *session.Session) {
	events := sess.Client().Events()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.binder.Emit(id, ev.Type, ev.Data); err != nil {
				if !errors.Is(err, stream.ErrNotBound) {
					s.logger.Debug("event delivery failed", "session_id", id, "error", err)
				}
				return
			}
			s.sessions.Touch(id)
		}
	}
}
