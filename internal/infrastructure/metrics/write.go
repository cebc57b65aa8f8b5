package metrics

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteGatewayGauge records registry occupancy for one gateway type.
//
// Written on every registry sweep so dashboards can track capacity per
// gateway type over time.
//
//	client.WriteGatewayGauge("o2s", 12, 10, 3400)
func (c *Client) WriteGatewayGauge(gatewayType string, registered, online, clients int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_registry",
		map[string]string{
			"gateway_type": gatewayType,
		},
		map[string]interface{}{
			"registered": registered,
			"online":     online,
			"clients":    clients,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAccessResult records the outcome of a gateway access request.
//
// outcome is "granted", "unavailable", or "conflict".
func (c *Client) WriteAccessResult(gatewayType, outcome string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"gateway_access",
		map[string]string{
			"gateway_type": gatewayType,
			"outcome":      outcome,
		},
		map[string]interface{}{
			"count":       1,
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionGauge records session store occupancy.
func (c *Client) WriteSessionGauge(active, bound int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sessions",
		nil,
		map[string]interface{}{
			"active": active,
			"bound":  bound,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteStreamEvent records events delivered through a session stream.
//
// transport is "sse" or "websocket".
func (c *Client) WriteStreamEvent(transport string, delivered int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"stream_events",
		map[string]string{
			"transport": transport,
		},
		map[string]interface{}{
			"delivered": delivered,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
// Use when the timestamp is not "now", such as replayed data.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
