// Package gateway implements the gateway registry: the authoritative
// in-memory record of live gateway instances, their heartbeat freshness,
// and availability queries for the access broker.
//
// # Lifecycle
//
// A gateway reports startup, then periodic status heartbeats, then
// shutdown. The registry holds exactly one Instance per id; a same-type
// re-startup is recovery, while id reuse across types is rejected.
// States move STARTING → ONLINE → {STALE → ONLINE}* → SHUTDOWN: a
// liveness sweep demotes instances whose heartbeat is overdue to STALE
// (excluded from selection, kept visible) and evicts instances that
// stay STALE past the eviction grace period.
//
// # Selection
//
// SelectAvailable picks among ONLINE instances of a type round-robin,
// tie-broken by registration order so repeated selections are
// deterministic and load spreads across instances.
//
// # Collaborators
//
// The registry announces lifecycle transitions on the MQTT event plane
// and appends them to a SQLite audit log. Both are optional and
// best-effort: a failed announce or audit write logs a warning and the
// registry operation still succeeds.
package gateway
