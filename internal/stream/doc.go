// Package stream manages emitter bindings: the at-most-one live
// server-push channel each session may hold.
//
// The Binder maps session id → binding and enforces the replacement
// policy: a second bind while an emitter is live is rejected with the
// existing client address, never silently swapped. Event ids count up
// per binding, and a heartbeat loop probes every live emitter so dead
// transports are detected and unbound between domain events.
//
// Transports (SSE, WebSocket) plug in through the Emitter interface;
// the binder owns their teardown once bound.
package stream
