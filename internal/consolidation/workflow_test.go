package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consolidex/consolidex/internal/shared"
)

func TestRunConsolidation(t *testing.T) {
	svc, stores, audit := newTestService(t)
	_, _, period := consolidatedFixture(t, svc, stores)
	ctx := context.Background()

	result, err := svc.RunConsolidation(ctx, "default", period.ID, "controller")
	require.NoError(t, err)
	require.Equal(t, RunSuccess, result.Status)
	require.Equal(t, period.ID, result.PeriodID)

	names := make([]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		assert.Equal(t, RunSuccess, step.Status, "step %s", step.Name)
		assert.Empty(t, step.Error)
		names = append(names, step.Name)
	}
	require.Equal(t, []string{
		"Validate Period",
		"Update Status",
		"Match Intercompany Transactions",
		"Generate Automatic Eliminations",
		"Post Eliminations",
		"Generate Statements",
		"Calculate Minority Interest",
		"Finalize Period",
	}, names)

	require.Len(t, result.Statements, 3)
	require.Equal(t, 80.0, result.MinorityInterest.TotalMinorityInterest)
	require.False(t, result.FinishedAt.IsZero(), "callers read the finish stamp off the returned result")
	require.False(t, result.FinishedAt.Before(result.StartedAt))

	got, err := svc.GetPeriod(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Equal(t, PeriodApproved, got.Status)

	logs, err := audit.List(ctx, "default", func(l shared.AuditLog) bool { return l.Action == "consolidation_run" })
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "controller", logs[0].ActorID)
}

func TestRunConsolidationFromReview(t *testing.T) {
	svc, stores, _ := newTestService(t)
	_, _, period := consolidatedFixture(t, svc, stores)
	ctx := context.Background()

	for _, status := range []PeriodStatus{PeriodInProgress, PeriodReview} {
		_, err := svc.UpdatePeriodStatus(ctx, "default", period.ID, status, "controller")
		require.NoError(t, err)
	}

	result, err := svc.RunConsolidation(ctx, "default", period.ID, "controller")
	require.NoError(t, err)
	require.Equal(t, RunSuccess, result.Status)

	got, err := svc.GetPeriod(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Equal(t, PeriodApproved, got.Status)
}

func TestRunConsolidationFromApproved(t *testing.T) {
	svc, stores, _ := newTestService(t)
	_, _, period := consolidatedFixture(t, svc, stores)
	ctx := context.Background()

	first, err := svc.RunConsolidation(ctx, "default", period.ID, "controller")
	require.NoError(t, err)
	require.Equal(t, RunSuccess, first.Status)

	// The period now sits in APPROVED; another run must refuse to start.
	second, err := svc.RunConsolidation(ctx, "default", period.ID, "controller")
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, RunFailed, second.Status)
	last := second.Steps[len(second.Steps)-1]
	require.Equal(t, "Update Status", last.Name)
	require.Equal(t, RunFailed, last.Status)
	require.NotEmpty(t, last.Error)
}

func TestRunConsolidationMissingPeriod(t *testing.T) {
	svc, _, _ := newTestService(t)
	result, err := svc.RunConsolidation(context.Background(), "default", "no-such-period", "controller")
	require.ErrorIs(t, err, ErrPeriodNotFound)
	require.Equal(t, RunFailed, result.Status)
	require.Len(t, result.Steps, 1)
	require.Equal(t, "Validate Period", result.Steps[0].Name)
	require.False(t, result.FinishedAt.IsZero(), "failed runs are stamped too")
}
