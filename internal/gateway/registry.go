package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/junctionlabs/junction-core/internal/infrastructure/config"
	"github.com/junctionlabs/junction-core/internal/infrastructure/logging"
	"github.com/junctionlabs/junction-core/internal/infrastructure/mqtt"
)

// Auditor records gateway lifecycle events durably.
// Implemented by AuditLog; failures are logged, never propagated.
type Auditor interface {
	Record(ctx context.Context, event AuditEvent) error
}

// Announcer publishes gateway lifecycle transitions to the event plane.
// Satisfied by the mqtt client.
type Announcer interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MetricsWriter records registry occupancy gauges.
// Satisfied by the metrics client.
type MetricsWriter interface {
	WriteGatewayGauge(gatewayType string, registered, online, clients int)
}

// Registry tracks live gateway instances, their heartbeat freshness,
// and serves availability queries for the access broker.
//
// All state lives in memory behind a single RWMutex; gateways recover
// it by re-reporting startup after a control-plane restart. A background
// sweep demotes overdue instances to STALE and evicts instances that
// stay STALE past the eviction grace period.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance

	// order holds gateway ids in first-registration order. Selection
	// iterates this slice so round-robin tie-breaks are deterministic.
	order []string

	// cursor holds the round-robin position per gateway type.
	cursor map[Type]int

	heartbeatTimeout time.Duration
	sweepInterval    time.Duration
	evictionGrace    time.Duration

	logger *logging.Logger

	audit    Auditor
	announce Announcer
	metrics  MetricsWriter
}

// NewRegistry creates a registry from configuration.
// Auditor, announcer and metrics are optional; set them before Run.
func NewRegistry(cfg config.RegistryConfig, logger *logging.Logger) *Registry {
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = cfg.HeartbeatTimeout / 2
	}

	return &Registry{
		instances:        make(map[string]*Instance),
		cursor:           make(map[Type]int),
		heartbeatTimeout: cfg.HeartbeatTimeout,
		sweepInterval:    sweep,
		evictionGrace:    cfg.EvictionGrace,
		logger:           logger.With("component", "gateway_registry"),
	}
}

// SetAuditor attaches a durable audit log. Call before Run.
func (r *Registry) SetAuditor(a Auditor) { r.audit = a }

// SetAnnouncer attaches a lifecycle announcer. Call before Run.
func (r *Registry) SetAnnouncer(a Announcer) { r.announce = a }

// SetMetrics attaches a metrics writer. Call before Run.
func (r *Registry) SetMetrics(m MetricsWriter) { r.metrics = m }

// ReportStartup registers a gateway or recovers an existing registration.
//
// An id already registered with a different type is rejected with
// ErrDuplicateRegistration. Same-type re-startup is treated as recovery:
// address, port and certificate are refreshed, the state returns to
// ONLINE, and the original registration order is preserved.
func (r *Registry) ReportStartup(ctx context.Context, report StartupReport) (*Instance, error) {
	if !report.Type.IsValid() {
		return nil, ErrInvalidType
	}

	now := time.Now()

	r.mu.Lock()
	existing, ok := r.instances[report.ID]
	if ok && existing.Type != report.Type {
		r.mu.Unlock()
		return nil, ErrDuplicateRegistration
	}

	event := auditStartup
	var inst *Instance
	if ok {
		// Recovery: refresh connection details, keep registration order.
		existing.Address = report.Address
		existing.Port = report.Port
		existing.APIPort = report.APIPort
		existing.Certificate = report.Certificate
		existing.ClientsMax = report.ClientsMax
		existing.LastHeartbeatAt = now
		if existing.State == StateStale {
			existing.ReconnectAttempts++
			event = auditRecovered
		}
		inst = existing
	} else {
		inst = &Instance{
			ID:              report.ID,
			Type:            report.Type,
			Address:         report.Address,
			Port:            report.Port,
			APIPort:         report.APIPort,
			Certificate:     report.Certificate,
			ClientsMax:      report.ClientsMax,
			RegisteredAt:    now,
			LastHeartbeatAt: now,
			State:           StateStarting,
		}
		r.instances[report.ID] = inst
		r.order = append(r.order, report.ID)
	}
	// The registration completes before the report returns, so STARTING
	// is never observable outside this critical section.
	inst.State = StateOnline
	snapshot := *inst
	r.mu.Unlock()

	r.logger.Info("gateway registered",
		"gateway_id", snapshot.ID,
		"type", snapshot.Type,
		"address", snapshot.Address,
		"port", snapshot.Port,
		"recovered", ok,
	)
	r.recordAudit(ctx, snapshot, event, "")
	r.announceLifecycle(snapshot, event)

	return &snapshot, nil
}

// ReportStatus refreshes a gateway's heartbeat and client counts.
// A STALE instance returns to ONLINE. Returns ErrUnknownGateway when no
// startup was recorded for the id.
func (r *Registry) ReportStatus(ctx context.Context, id string, report StatusReport) error {
	now := time.Now()

	r.mu.Lock()
	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownGateway
	}

	inst.LastHeartbeatAt = now
	inst.Clients = report.Clients
	if report.ClientsMax > 0 {
		inst.ClientsMax = report.ClientsMax
	}

	recovered := inst.State == StateStale
	if recovered {
		inst.State = StateOnline
		inst.ReconnectAttempts++
	}
	snapshot := *inst
	r.mu.Unlock()

	if recovered {
		r.logger.Info("gateway recovered on status report",
			"gateway_id", id,
			"reconnect_attempts", snapshot.ReconnectAttempts,
		)
		r.recordAudit(ctx, snapshot, auditRecovered, "")
		r.announceLifecycle(snapshot, auditRecovered)
	}

	return nil
}

// ReportShutdown removes a gateway immediately.
// Shutdown for an unknown id is a no-op success.
func (r *Registry) ReportShutdown(ctx context.Context, id string) error {
	r.mu.Lock()
	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	inst.State = StateShutdown
	snapshot := *inst
	delete(r.instances, id)
	r.removeFromOrder(id)
	r.mu.Unlock()

	r.logger.Info("gateway shutdown", "gateway_id", id, "type", snapshot.Type)
	r.recordAudit(ctx, snapshot, auditShutdown, "")
	r.announceLifecycle(snapshot, auditShutdown)

	return nil
}

// SelectAvailable returns one ONLINE gateway of the requested type
// whose heartbeat is within the heartbeat timeout.
//
// Freshness is checked here, not just by the sweep: an instance that
// went overdue between sweep ticks must never be handed to a caller.
// Selection is round-robin over the qualifying instances in
// registration order, so repeated calls spread load and tests are
// deterministic. Returns UnavailableError when none qualifies.
func (r *Registry) SelectAvailable(t Type) (*Instance, error) {
	if !t.IsValid() {
		return nil, ErrInvalidType
	}

	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var candidates []*Instance
	for _, id := range r.order {
		inst := r.instances[id]
		if inst == nil || inst.Type != t || inst.State != StateOnline {
			continue
		}
		if now.Sub(inst.LastHeartbeatAt) > r.heartbeatTimeout {
			continue
		}
		candidates = append(candidates, inst)
	}
	if len(candidates) == 0 {
		return nil, &UnavailableError{Type: t}
	}

	pick := candidates[r.cursor[t]%len(candidates)]
	r.cursor[t]++

	snapshot := *pick
	return &snapshot, nil
}

// Get returns a copy of the instance for id, or ErrUnknownGateway.
func (r *Registry) Get(id string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, ErrUnknownGateway
	}
	snapshot := *inst
	return &snapshot, nil
}

// List returns copies of all instances in registration order.
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Instance, 0, len(r.order))
	for _, id := range r.order {
		if inst, ok := r.instances[id]; ok {
			snapshot := *inst
			out = append(out, &snapshot)
		}
	}
	return out
}

// Stats returns per-type occupancy counts.
func (r *Registry) Stats() map[Type]TypeStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[Type]TypeStats)
	for _, inst := range r.instances {
		s := stats[inst.Type]
		s.Registered++
		s.Clients += inst.Clients
		if inst.State == StateOnline {
			s.Online++
		}
		stats[inst.Type] = s
	}
	return stats
}

// Run executes the liveness sweep until ctx is cancelled.
// Call as a goroutine after construction.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	r.logger.Info("registry sweep started",
		"interval", r.sweepInterval,
		"heartbeat_timeout", r.heartbeatTimeout,
		"eviction_grace", r.evictionGrace,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("registry sweep stopped")
			return
		case <-ticker.C:
			r.sweepOnce(ctx, time.Now())
		}
	}
}

// sweepOnce runs a single liveness pass: ONLINE instances with an
// overdue heartbeat become STALE; instances STALE past the eviction
// grace are removed. The critical section is one pass over the map.
func (r *Registry) sweepOnce(ctx context.Context, now time.Time) {
	var demoted, evicted []Instance

	r.mu.Lock()
	for id, inst := range r.instances {
		overdue := now.Sub(inst.LastHeartbeatAt)
		switch inst.State {
		case StateOnline:
			if overdue > r.heartbeatTimeout {
				inst.State = StateStale
				demoted = append(demoted, *inst)
			}
		case StateStale:
			if overdue > r.heartbeatTimeout+r.evictionGrace {
				evicted = append(evicted, *inst)
				delete(r.instances, id)
				r.removeFromOrder(id)
			}
		}
	}
	r.mu.Unlock()

	for _, inst := range demoted {
		r.logger.Warn("gateway heartbeat overdue, demoted to stale",
			"gateway_id", inst.ID,
			"type", inst.Type,
			"last_heartbeat_at", inst.LastHeartbeatAt,
		)
		r.recordAudit(ctx, inst, auditStale, "")
		r.announceLifecycle(inst, auditStale)
	}
	for _, inst := range evicted {
		r.logger.Warn("stale gateway evicted",
			"gateway_id", inst.ID,
			"type", inst.Type,
		)
		r.recordAudit(ctx, inst, auditExpired, "")
		r.announceLifecycle(inst, auditExpired)
	}

	r.writeGauges()
}

// writeGauges pushes per-type occupancy to the metrics writer.
func (r *Registry) writeGauges() {
	if r.metrics == nil {
		return
	}
	for t, s := range r.Stats() {
		r.metrics.WriteGatewayGauge(string(t), s.Registered, s.Online, s.Clients)
	}
}

// removeFromOrder deletes id from the registration-order slice.
// Caller must hold the write lock.
func (r *Registry) removeFromOrder(id string) {
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// recordAudit writes a lifecycle event to the audit log, best-effort.
func (r *Registry) recordAudit(ctx context.Context, inst Instance, event, detail string) {
	if r.audit == nil {
		return
	}
	err := r.audit.Record(ctx, AuditEvent{
		GatewayID:   inst.ID,
		GatewayType: inst.Type,
		Event:       event,
		Address:     inst.Address,
		Port:        inst.Port,
		Clients:     inst.Clients,
		ClientsMax:  inst.ClientsMax,
		Detail:      detail,
		RecordedAt:  time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("gateway audit write failed",
			"gateway_id", inst.ID,
			"event", event,
			"error", err,
		)
	}
}

// lifecyclePayload is the JSON body announced on the gateway lifecycle topic.
type lifecyclePayload struct {
	GatewayID string    `json:"gateway_id"`
	Type      Type      `json:"type"`
	Event     string    `json:"event"`
	State     State     `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// announceLifecycle publishes a lifecycle transition, best-effort.
func (r *Registry) announceLifecycle(inst Instance, event string) {
	if r.announce == nil {
		return
	}

	payload, err := json.Marshal(lifecyclePayload{
		GatewayID: inst.ID,
		Type:      inst.Type,
		Event:     event,
		State:     inst.State,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	topic := mqtt.Topics{}.GatewayLifecycle(inst.ID)
	if err := r.announce.Publish(topic, payload, 1, false); err != nil {
		r.logger.Warn("gateway lifecycle announce failed",
			"gateway_id", inst.ID,
			"event", event,
			"error", err,
		)
	}
}
