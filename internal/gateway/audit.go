package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/junctionlabs/junction-core/internal/infrastructure/database"
)

// Audit event names.
const (
	auditStartup   = "startup"
	auditRecovered = "recovered"
	auditStale     = "stale"
	auditShutdown  = "shutdown"
	auditExpired   = "expired"
)

// AuditEvent is one durable gateway lifecycle record.
type AuditEvent struct {
	ID          int64     `json:"id"`
	GatewayID   string    `json:"gateway_id"`
	GatewayType Type      `json:"gateway_type"`
	Event       string    `json:"event"`
	Address     string    `json:"address,omitempty"`
	Port        int       `json:"port,omitempty"`
	Clients     int       `json:"clients"`
	ClientsMax  int       `json:"clients_max"`
	Detail      string    `json:"detail,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// AuditLog persists gateway lifecycle events to SQLite.
//
// The audit log is an optional collaborator: the registry treats write
// failures as log-and-continue, never as operation failures.
type AuditLog struct {
	db *database.DB
}

// NewAuditLog creates an audit log backed by the given database.
// The gateway_audit table must exist (applied by migrations).
func NewAuditLog(db *database.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record appends one lifecycle event.
func (a *AuditLog) Record(ctx context.Context, event AuditEvent) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO gateway_audit
			(gateway_id, gateway_type, event, address, port, clients, clients_max, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.GatewayID,
		string(event.GatewayType),
		event.Event,
		event.Address,
		event.Port,
		event.Clients,
		event.ClientsMax,
		event.Detail,
		event.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording gateway audit event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first.
// gatewayID filters to one gateway when non-empty.
func (a *AuditLog) List(ctx context.Context, gatewayID string, limit int) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, gateway_id, gateway_type, event, address, port, clients, clients_max, detail, recorded_at
		FROM gateway_audit`
	args := []any{}
	if gatewayID != "" {
		query += " WHERE gateway_id = ?"
		args = append(args, gatewayID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying gateway audit log: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var gwType, recordedAt string
		if err := rows.Scan(
			&e.ID, &e.GatewayID, &gwType, &e.Event, &e.Address,
			&e.Port, &e.Clients, &e.ClientsMax, &e.Detail, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		e.GatewayType = Type(gwType)
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt) //nolint:errcheck // Format is controlled
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return events, nil
}
