package shared

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAuditRecorder writes records into the audit_logs table.
type PGAuditRecorder struct {
	pool *pgxpool.Pool
}

// NewPGAuditRecorder returns a Postgres-backed recorder.
func NewPGAuditRecorder(pool *pgxpool.Pool) *PGAuditRecorder {
	return &PGAuditRecorder{pool: pool}
}

// Record persists the log entry.
func (r *PGAuditRecorder) Record(ctx context.Context, log AuditLog) error {
	if r == nil || r.pool == nil {
		return errors.New("audit recorder not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_logs (tenant_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`, log.TenantID, log.ActorID, log.Action, log.Entity, log.EntityID, metaJSON, log.At)
	return err
}

// List returns tenant records, newest first. The filter runs client-side so
// callers can reuse the same predicates as the in-memory recorder.
func (r *PGAuditRecorder) List(ctx context.Context, tenantID string, filter func(AuditLog) bool) ([]AuditLog, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New("audit recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT tenant_id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs WHERE tenant_id=$1 ORDER BY occurred_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []AuditLog
	for rows.Next() {
		var l AuditLog
		var metaJSON []byte
		if err := rows.Scan(&l.TenantID, &l.ActorID, &l.Action, &l.Entity, &l.EntityID, &metaJSON, &l.At); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &l.Meta); err != nil {
				return nil, err
			}
		}
		if filter != nil && !filter(l) {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
