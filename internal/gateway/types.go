package gateway

import "time"

// Type identifies the traffic direction a gateway instance serves.
type Type string

// Gateway types.
const (
	// TypeO2S relays object-to-service traffic (devices pushing state).
	TypeO2S Type = "o2s"

	// TypeS2O relays service-to-object traffic (apps sending commands).
	TypeS2O Type = "s2o"

	// TypeAPI serves the generic object API surface.
	TypeAPI Type = "api"
)

// IsValid reports whether t is a known gateway type.
func (t Type) IsValid() bool {
	switch t {
	case TypeO2S, TypeS2O, TypeAPI:
		return true
	}
	return false
}

// State is the lifecycle state of a registered gateway instance.
//
// Transitions: STARTING → ONLINE → {STALE → ONLINE}* → SHUTDOWN.
// STARTING covers a registration in flight; a startup report completes
// to ONLINE before it returns, so stored instances are only ever seen
// ONLINE, STALE or SHUTDOWN. A STALE instance is excluded from
// selection but kept until shutdown or eviction by the liveness sweep.
type State string

// Gateway states.
const (
	StateStarting State = "starting"
	StateOnline   State = "online"
	StateStale    State = "stale"
	StateShutdown State = "shutdown"
)

// Instance is a live gateway known to the registry.
//
// Instances are owned exclusively by the Registry; callers receive
// copies and never share the registry's internal pointers.
type Instance struct {
	// ID is the caller-assigned gateway identifier.
	ID string `json:"id"`

	// Type is the traffic direction this instance serves.
	Type Type `json:"type"`

	// Address and Port are where callers connect for relayed traffic.
	Address string `json:"address"`
	Port    int    `json:"port"`

	// APIPort is the gateway's own management port (0 if not exposed).
	APIPort int `json:"api_port,omitempty"`

	// Certificate is the gateway's public certificate, handed to
	// callers so they can verify the gateway on direct connection.
	Certificate string `json:"certificate"`

	// Clients / ClientsMax track current and maximum connected callers,
	// refreshed on each status report.
	Clients    int `json:"clients"`
	ClientsMax int `json:"clients_max"`

	// RegisteredAt is when the first startup report arrived. Preserved
	// across same-type re-registration so selection order stays stable.
	RegisteredAt time.Time `json:"registered_at"`

	// LastHeartbeatAt is refreshed by every startup and status report.
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`

	// State is the current lifecycle state.
	State State `json:"state"`

	// ReconnectAttempts counts STALE→ONLINE recoveries since registration.
	ReconnectAttempts int `json:"reconnect_attempts"`
}

// StartupReport is the payload of a gateway startup (or re-startup) report.
type StartupReport struct {
	ID          string `json:"id"`
	Type        Type   `json:"type"`
	Address     string `json:"address"`
	Port        int    `json:"port"`
	APIPort     int    `json:"api_port"`
	Certificate string `json:"certificate"`
	ClientsMax  int    `json:"clients_max"`
}

// StatusReport is the payload of a periodic gateway heartbeat.
type StatusReport struct {
	Clients    int `json:"clients"`
	ClientsMax int `json:"clients_max"`
}

// TypeStats summarises registry occupancy for one gateway type.
type TypeStats struct {
	Registered int `json:"registered"`
	Online     int `json:"online"`
	Clients    int `json:"clients"`
}
