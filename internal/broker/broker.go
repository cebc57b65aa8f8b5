package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/junctionlabs/junction-core/internal/gateway"
	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
)

// Selector is the registry surface the broker consumes.
type Selector interface {
	SelectAvailable(t gateway.Type) (*gateway.Instance, error)
}

// AccessMetrics records access request outcomes.
// Satisfied by the metrics client.
type AccessMetrics interface {
	WriteAccessResult(gatewayType, outcome string, duration time.Duration)
}

// Broker introduces callers to gateways: it selects an available
// gateway of the requested type and returns its connection details as
// an AccessGrant.
//
// The broker holds no state beyond the in-flight set used for
// per-identity serialization: a second concurrent request for the same
// (kind, id) identity is rejected with ErrAccessInProgress rather than
// queued, so a caller never stacks up behind its own retries. Different
// callers proceed fully in parallel.
type Broker struct {
	registry Selector
	inflight *inflightSet
	logger   *logging.Logger
	metrics  AccessMetrics

	// recent is a bounded ring of issued grants for the admin status
	// surface. Advisory only; grants are never looked up for enforcement.
	recentMu  sync.Mutex
	recent    []AccessGrant
	recentCap int
}

// New creates a broker over the given registry.
func New(cfg config.BrokerConfig, registry Selector, logger *logging.Logger) *Broker {
	return &Broker{
		registry:  registry,
		inflight:  newInflightSet(),
		logger:    logger.With("component", "access_broker"),
		recentCap: cfg.GrantLogRetention,
	}
}

// SetMetrics attaches a metrics writer.
func (b *Broker) SetMetrics(m AccessMetrics) { b.metrics = m }

// RequestAccess selects an ONLINE gateway of the requested type and
// issues an AccessGrant for the caller.
//
// Registry unavailability (gateway.ErrGatewayUnavailable) propagates
// unchanged so callers can apply their own retry policy. The caller
// id/certificate association with the selected gateway is advisory:
// it is logged, not enforced beyond this call.
func (b *Broker) RequestAccess(ctx context.Context, req AccessRequest) (*AccessGrant, error) {
	if !req.CallerKind.IsValid() || req.CallerID == "" {
		return nil, fmt.Errorf("%w: caller kind %q, id %q", ErrInvalidRequest, req.CallerKind, req.CallerID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	key := req.identityKey()
	if !b.inflight.tryAcquire(key) {
		b.writeResult(req.GatewayType, "conflict", start)
		return nil, ErrAccessInProgress
	}
	defer b.inflight.release(key)

	inst, err := b.registry.SelectAvailable(req.GatewayType)
	if err != nil {
		b.writeResult(req.GatewayType, "unavailable", start)
		return nil, err
	}

	grant := &AccessGrant{
		GrantID:     uuid.NewString(),
		CallerKind:  req.CallerKind,
		CallerID:    req.CallerID,
		GatewayID:   inst.ID,
		GatewayType: inst.Type,
		Address:     inst.Address,
		Port:        inst.Port,
		Certificate: inst.Certificate,
		IssuedAt:    time.Now().UTC(),
	}

	b.logger.Info("access granted",
		"grant_id", grant.GrantID,
		"caller_kind", req.CallerKind,
		"caller_id", req.CallerID,
		"gateway_id", inst.ID,
		"gateway_type", inst.Type,
	)
	b.writeResult(req.GatewayType, "granted", start)
	b.remember(*grant)

	return grant, nil
}

// remember appends a grant to the bounded recent-grant ring.
func (b *Broker) remember(grant AccessGrant) {
	if b.recentCap <= 0 {
		return
	}
	b.recentMu.Lock()
	defer b.recentMu.Unlock()

	b.recent = append(b.recent, grant)
	if len(b.recent) > b.recentCap {
		b.recent = b.recent[len(b.recent)-b.recentCap:]
	}
}

// RecentGrants returns the most recently issued grants, oldest first.
func (b *Broker) RecentGrants() []AccessGrant {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()

	out := make([]AccessGrant, len(b.recent))
	copy(out, b.recent)
	return out
}

func (b *Broker) writeResult(t gateway.Type, outcome string, start time.Time) {
	if b.metrics == nil {
		return
	}
	b.metrics.WriteAccessResult(string(t), outcome, time.Since(start))
}
