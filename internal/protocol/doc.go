// Package protocol defines the protocol-client a session owns: the
// live connection that surfaces object events for the session's stream.
//
// MQTTClient is the production implementation, subscribing to object
// event topics on the MQTT event plane. MemClient is an in-process
// stand-in for tests and deployments without a broker. Sessions obtain
// clients through a Factory so the store never depends on a concrete
// transport.
package protocol
