package mqtt

import "fmt"

// Topic prefixes for the Junction MQTT hierarchy.
//
// Gateways and object agents publish under junction/{category}/{id}/...;
// the control plane publishes its own liveness under junction/system.
const (
	// TopicPrefixRoot is the base for all Junction topics.
	TopicPrefixRoot = "junction"

	// TopicPrefixSystem is the base for control-plane system topics.
	TopicPrefixSystem = "junction/system"

	// TopicPrefixGateways is the base for gateway lifecycle topics.
	TopicPrefixGateways = "junction/gateways"

	// TopicPrefixObjects is the base for object event topics.
	TopicPrefixObjects = "junction/objects"
)

// Topics provides builders for Junction MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.ObjectEvents("obj-7f3a")
//	// Returns: "junction/objects/obj-7f3a/events"
type Topics struct{}

// SystemStatus returns the control-plane status topic.
// Retained online/offline payloads are published here, including the LWT.
//
// Example: junction/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// GatewayLifecycle returns the lifecycle topic for a gateway.
// The registry announces startup, status and shutdown transitions here.
//
// Example: junction/gateways/gw-o2s-01/lifecycle
func (Topics) GatewayLifecycle(gatewayID string) string {
	return fmt.Sprintf("%s/%s/lifecycle", TopicPrefixGateways, gatewayID)
}

// ObjectEvents returns the event topic for a single object.
//
// Example: junction/objects/obj-7f3a/events
func (Topics) ObjectEvents(objectID string) string {
	return fmt.Sprintf("%s/%s/events", TopicPrefixObjects, objectID)
}

// ObjectState returns the retained state topic for a single object.
//
// Example: junction/objects/obj-7f3a/state
func (Topics) ObjectState(objectID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixObjects, objectID)
}

// AllGatewayLifecycles returns a pattern matching every gateway lifecycle topic.
//
// Pattern: junction/gateways/+/lifecycle
func (Topics) AllGatewayLifecycles() string {
	return fmt.Sprintf("%s/+/lifecycle", TopicPrefixGateways)
}

// AllObjectEvents returns a pattern matching event topics for every object.
//
// Pattern: junction/objects/+/events
func (Topics) AllObjectEvents() string {
	return fmt.Sprintf("%s/+/events", TopicPrefixObjects)
}

// AllTopics returns a pattern matching the entire Junction hierarchy.
// Use with caution, this receives ALL traffic.
//
// Pattern: junction/#
func (Topics) AllTopics() string {
	return "junction/#"
}
