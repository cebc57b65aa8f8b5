package broker

import (
	"time"

	"github.com/junctionlabs/junction-core/internal/gateway"
)

// CallerKind distinguishes the two parties that request gateway access.
type CallerKind string

// Caller kinds.
const (
	// KindObject is a device requesting a gateway.
	KindObject CallerKind = "object"

	// KindService is a client application requesting a gateway.
	KindService CallerKind = "service"
)

// IsValid reports whether k is a known caller kind.
func (k CallerKind) IsValid() bool {
	return k == KindObject || k == KindService
}

// AccessRequest asks the broker for a gateway of a given type on behalf
// of one caller identity.
type AccessRequest struct {
	CallerKind  CallerKind   `json:"caller_kind"`
	CallerID    string       `json:"caller_id"`
	Certificate string       `json:"certificate"`
	GatewayType gateway.Type `json:"gateway_type"`
}

// identityKey returns the serialization key for this caller identity.
func (r AccessRequest) identityKey() string {
	return string(r.CallerKind) + "/" + r.CallerID
}

// AccessGrant is the result of a successful access request: the
// selected gateway's connection details, paired with the caller
// identity they were issued to.
//
// Grants are ephemeral and never persisted; each access request
// re-selects a gateway. The actual tunnel is established out-of-band
// between the caller and the gateway.
type AccessGrant struct {
	GrantID     string       `json:"grant_id"`
	CallerKind  CallerKind   `json:"caller_kind"`
	CallerID    string       `json:"caller_id"`
	GatewayID   string       `json:"gateway_id"`
	GatewayType gateway.Type `json:"gateway_type"`
	Address     string       `json:"address"`
	Port        int          `json:"port"`
	Certificate string       `json:"certificate"`
	IssuedAt    time.Time    `json:"issued_at"`
}
