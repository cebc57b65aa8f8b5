package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/junctionlabs/junction-core/internal/gateway"
)

// handleGatewayStartup registers (or recovers) the reporting gateway.
//
// The gateway id comes from the identity header, never from the body;
// a gateway can only ever report about itself.
func (s *Server) handleGatewayStartup(w http.ResponseWriter, r *http.Request) {
	var report gateway.StartupReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if report.Address == "" || report.Port == 0 {
		writeBadRequest(w, "address and port are required")
		return
	}
	report.ID = gatewayIDFromContext(r.Context())

	inst, err := s.registry.ReportStartup(r.Context(), report)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inst)
}

// handleGatewayStatus records a heartbeat from the reporting gateway.
func (s *Server) handleGatewayStatus(w http.ResponseWriter, r *http.Request) {
	var report gateway.StatusReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.registry.ReportStatus(r.Context(), gatewayIDFromContext(r.Context()), report)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleGatewayShutdown deregisters the reporting gateway. A shutdown
// for an id the registry no longer holds is not an error.
func (s *Server) handleGatewayShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.ReportShutdown(r.Context(), gatewayIDFromContext(r.Context())); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleListGateways returns the registered fleet plus per-type stats.
func (s *Server) handleListGateways(w http.ResponseWriter, _ *http.Request) {
	instances := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"gateways": instances,
		"count":    len(instances),
		"stats":    s.registry.Stats(),
	})
}

// handleGatewayAudit returns recent gateway lifecycle events, newest first.
//
// Query parameters:
//   - gateway_id: filter to one gateway
//   - limit: maximum events to return (default 100)
func (s *Server) handleGatewayAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit log not enabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := s.audit.List(r.Context(), r.URL.Query().Get("gateway_id"), limit)
	if err != nil {
		s.logger.Error("audit log read failed", "error", err)
		writeInternalError(w, "failed to read audit log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
