package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one row of the audit_logs trail. EstablishmentID may be
// zero for platform-level actions (superadmin operations).
type AuditLog struct {
	ActorID         int64
	EstablishmentID int64
	Action          string
	Entity          string
	EntityID        string
	Meta            map[string]any
	At              time.Time
}

// AuditLogger appends to the audit trail. A nil logger is accepted by
// callers; services skip recording when no trail is configured.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, establishment_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, COALESCE($7, NOW()))`,
		log.ActorID, log.EstablishmentID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}
