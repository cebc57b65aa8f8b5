// Package metrics writes control-plane telemetry to InfluxDB v2.
//
// Junction records three families of measurements: gateway_registry
// (per-type registration and capacity gauges, written on each registry
// sweep), gateway_access (access request outcomes and latency), and
// sessions / stream_events (session store occupancy and stream
// delivery counts).
//
// Writes go through the non-blocking batched WriteAPI; a dropped point
// never blocks a request path. Async write failures surface through
// SetOnError. When metrics are disabled in config, Connect returns
// ErrDisabled and callers run without a client.
package metrics
