// Package api implements the HTTP API server for Junction Cloud Core.
//
// This package provides:
//   - Internal gateway endpoints for startup, status, and shutdown reports
//   - Access brokering for callers that need a gateway connection
//   - Session lifecycle endpoints for the web bridge
//   - SSE and WebSocket event emitters bound to sessions
//   - Middleware stack (request ID, logging, recovery, CORS, JWT auth)
//   - TLS support for production deployments
//
// # Architecture
//
// The server is a thin HTTP layer over the domain packages: gateway
// registrations go to gateway.Registry, access requests to
// broker.Broker, and session operations to session.Store. Event
// delivery runs through stream.Binder, which owns the one-emitter-per-
// session invariant; the api package only adapts SSE and WebSocket
// connections into stream.Emitter implementations.
//
// Internal gateway endpoints authenticate via the X-Junction-GW-ID
// header, which the deployment's ingress sets from the gateway's
// client certificate. Public endpoints require a bearer token issued
// by the external auth service and verified with auth.ParseToken.
package api
