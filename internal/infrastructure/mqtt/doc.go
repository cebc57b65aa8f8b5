// Package mqtt wraps paho.mqtt.golang for Junction Cloud Core.
//
// The control plane uses MQTT for two things: announcing its own
// liveness (retained status on junction/system/status with an LWT for
// crash detection) and the object event plane, where gateways publish
// object events under junction/objects/{id}/events and the registry
// announces gateway lifecycle transitions under
// junction/gateways/{id}/lifecycle.
//
// The wrapper adds what raw paho leaves to the caller: tracked
// subscriptions restored after reconnect, panic recovery around message
// handlers, payload size limits, and consistent topic construction via
// the Topics builder.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.AllObjectEvents(), 1, handleEvent)
package mqtt
