package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
	"github.com/junctionlabs/junction-core/internal/stream"
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// wsEmitter implements stream.Emitter over a WebSocket connection.
//
// Events are queued on a buffered channel and drained by writePump, so
// Send never blocks the binder on a slow client. A full buffer drops
// the event; connection death is detected by the pumps, which close
// the emitter and wake the unbind watcher.
type wsEmitter struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSEmitter(conn *websocket.Conn, bufferSize int) *wsEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &wsEmitter{
		conn: conn,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
}

// Send queues one event for delivery.
func (e *wsEmitter) Send(event stream.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case <-e.done:
		return errEmitterClosed
	case e.send <- data:
		return nil
	default:
		// Buffer full: slow client. Dropping beats stalling the binder;
		// the stream heartbeat will reap the connection if it is dead.
		return nil
	}
}

// Close marks the emitter dead and lets the pumps tear the connection
// down. Idempotent.
func (e *wsEmitter) Close() error {
	e.once.Do(func() { close(e.done) })
	return nil
}

// writePump drains queued events to the connection and sends protocol
// pings. It owns all writes to the connection.
func (e *wsEmitter) writePump(cfg config.StreamConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		e.Close() //nolint:errcheck // Close never fails
		e.conn.Close()
	}()

	for {
		select {
		case <-e.done:
			//nolint:errcheck // Best-effort close message
			e.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case message := <-e.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			e.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			e.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames to keep the connection's read
// deadline fresh. The event stream is one-way; client frames only
// count as liveness and session activity.
func (e *wsEmitter) readPump(cfg config.StreamConfig, logger *logging.Logger, touch func()) {
	defer func() {
		e.Close() //nolint:errcheck // Close never fails
		e.conn.Close()
	}()

	e.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	e.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	e.conn.SetPongHandler(func(string) error {
		return e.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := e.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "error", err)
			} else {
				logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client frame resets the read deadline and counts as
		// session activity.
		//nolint:errcheck // Best-effort deadline reset
		e.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		touch()
	}
}

// handleSessionWS upgrades the connection and binds a WebSocket emitter
// to the session.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Pre-flight conflict check while a plain HTTP status can still be
	// returned. Bind below re-checks authoritatively.
	if binding, ok := s.binder.Get(id); ok {
		writeDomainError(w, &stream.AlreadyBoundError{SessionID: id, ExistingAddress: binding.ClientAddress})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	emitter := newWSEmitter(conn, s.streamCfg.SendBufferSize)

	if err := s.binder.Bind(id, r.RemoteAddr, transportWebSocket, emitter); err != nil {
		// Lost the bind race after upgrade; close in-protocol.
		//nolint:errcheck // Best-effort close message
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "emitter already bound"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	// The request context dies when this handler returns, so the pumps
	// and the event pump key off the emitter's done channel instead.
	go emitter.writePump(s.streamCfg)
	go emitter.readPump(s.streamCfg, s.logger, func() { s.sessions.Touch(id) })
	go s.pumpSessionEvents(emitter.done, id, sess)
	go func() {
		<-emitter.done
		s.binder.UnbindIf(id, emitter)
	}()
}
