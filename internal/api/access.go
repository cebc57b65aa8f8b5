package api

import (
	"encoding/json"
	"net/http"

	"github.com/junctionlabs/junction-core/internal/broker"
	"github.com/junctionlabs/junction-core/internal/gateway"
)

// handleRequestAccess brokers a gateway connection for the caller.
//
// The caller identity comes from the verified token, never from the
// body; the body only names the wanted gateway type and optionally
// carries the caller's certificate for the gateway handshake.
func (s *Server) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GatewayType string `json:"gateway_type"`
		Certificate string `json:"certificate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := callerFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "caller identity missing")
		return
	}

	req := broker.AccessRequest{
		CallerKind:  broker.CallerKind(claims.Kind),
		CallerID:    claims.Subject,
		Certificate: body.Certificate,
		GatewayType: gateway.Type(body.GatewayType),
	}

	grant, err := s.broker.RequestAccess(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grant)
}
