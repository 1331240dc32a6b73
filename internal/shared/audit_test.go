package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryAuditRecorderValidation(t *testing.T) {
	r := NewMemoryAuditRecorder()
	ctx := context.Background()

	cases := []AuditLog{
		{TenantID: "t1", Entity: "legal_entities", EntityID: "e1"},
		{TenantID: "t1", Action: "entity_created", EntityID: "e1"},
		{TenantID: "t1", Action: "entity_created", Entity: "legal_entities"},
	}
	for _, log := range cases {
		require.Error(t, r.Record(ctx, log))
	}
	require.NoError(t, r.Record(ctx, AuditLog{
		TenantID: "t1", Action: "entity_created", Entity: "legal_entities", EntityID: "e1",
	}))
}

func TestMemoryAuditRecorderDefaultsTimestamp(t *testing.T) {
	r := NewMemoryAuditRecorder()
	ctx := context.Background()
	require.NoError(t, r.Record(ctx, AuditLog{
		TenantID: "t1", Action: "period_created", Entity: "consolidation_periods", EntityID: "p1",
	}))
	logs, err := r.List(ctx, "t1", func(AuditLog) bool { return true })
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.False(t, logs[0].At.IsZero())
}

func TestMemoryAuditRecorderList(t *testing.T) {
	r := NewMemoryAuditRecorder()
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []string{"entity_created", "period_created", "entity_deleted"} {
		require.NoError(t, r.Record(ctx, AuditLog{
			TenantID: "t1", Action: action, Entity: "x", EntityID: "1",
			At: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, r.Record(ctx, AuditLog{
		TenantID: "t2", Action: "entity_created", Entity: "x", EntityID: "1", At: base,
	}))

	logs, err := r.List(ctx, "t1", func(AuditLog) bool { return true })
	require.NoError(t, err)
	require.Len(t, logs, 3, "other tenants' records stay invisible")
	require.Equal(t, "entity_deleted", logs[0].Action, "newest first")
	require.Equal(t, "entity_created", logs[2].Action)

	created, err := r.List(ctx, "t1", func(l AuditLog) bool { return l.Action == "entity_created" })
	require.NoError(t, err)
	require.Len(t, created, 1)
}
