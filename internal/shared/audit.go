package shared

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// AuditLog represents a single audit trail record.
type AuditLog struct {
	TenantID string         `json:"tenantId"`
	ActorID  string         `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditRecorder captures audit events emitted by the consolidation engine.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
	List(ctx context.Context, tenantID string, filter func(AuditLog) bool) ([]AuditLog, error)
}

// MemoryAuditRecorder keeps audit records in process memory. Production
// deployments swap in the Postgres-backed recorder.
type MemoryAuditRecorder struct {
	mu   sync.RWMutex
	logs []AuditLog
}

// NewMemoryAuditRecorder returns an empty recorder.
func NewMemoryAuditRecorder() *MemoryAuditRecorder {
	return &MemoryAuditRecorder{}
}

// Record appends the log entry.
func (r *MemoryAuditRecorder) Record(_ context.Context, log AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	r.mu.Lock()
	r.logs = append(r.logs, log)
	r.mu.Unlock()
	return nil
}

// List returns tenant records matching the filter, newest first.
func (r *MemoryAuditRecorder) List(_ context.Context, tenantID string, filter func(AuditLog) bool) ([]AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []AuditLog
	for _, log := range r.logs {
		if log.TenantID != tenantID {
			continue
		}
		if filter != nil && !filter(log) {
			continue
		}
		out = append(out, log)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}
