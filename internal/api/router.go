package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Internal gateway endpoints. These sit behind the private
		// ingress, which terminates the gateway's mutual-TLS connection
		// and forwards its identity in X-Junction-GW-ID.
		r.Route("/internal/gateways", func(r chi.Router) {
			r.Use(s.gatewayIdentityMiddleware)

			r.Post("/startup", s.handleGatewayStartup)
			r.Post("/status", s.handleGatewayStatus)
			r.Post("/shutdown", s.handleGatewayShutdown)
		})

		// Protected routes (bearer token from the external auth service)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Gateway fleet (admin/read)
			r.Route("/gateways", func(r chi.Router) {
				r.Get("/", s.handleListGateways)
				r.Get("/audit", s.handleGatewayAudit)
			})

			// Access brokering
			r.Post("/access", s.handleRequestAccess)

			// Web-bridge sessions
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", s.handleOpenSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSession)
					r.Delete("/", s.handleCloseSession)
					r.Get("/events", s.handleSessionEvents)
					r.Get("/ws", s.handleSessionWS)
					r.Delete("/emitter", s.handleUnbindEmitter)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"sessions": s.sessions.Count(),
		"bindings": s.binder.Count(),
	})
}
