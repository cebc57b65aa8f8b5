package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/junctionlabs/junction-core/internal/protocol"
)

// handleOpenSession opens a web-bridge session, or returns the existing
// one when the named session is already open.
//
// Returns 201 when a session was created and 200 when an existing
// session was reused.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string          `json:"session_id,omitempty"`
		Params    protocol.Params `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sess, created, err := s.sessions.Open(r.Context(), body.SessionID, body.Params)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sess.Info())
}

// handleGetSession returns the status of one session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	info := sess.Info()
	resp := map[string]any{
		"id":               info.ID,
		"state":            info.State,
		"created_at":       info.CreatedAt,
		"last_activity_at": info.LastActivityAt,
	}
	if binding, ok := s.binder.Get(info.ID); ok {
		resp["emitter"] = binding
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCloseSession closes a session and releases its protocol client.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "closed"})
}

// handleUnbindEmitter force-unbinds a session's emitter.
//
// Unbinding is idempotent: the response is the same whether or not an
// emitter was bound, so a client can always clear the way for a fresh
// bind after a half-dead connection.
func (s *Server) handleUnbindEmitter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.binder.Unbind(id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "unbound"})
}
