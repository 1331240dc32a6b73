package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreatePeriodStartsInDraft(t *testing.T) {
	svc, _, _ := newTestService(t)
	period := mustPeriod(t, svc, "default")
	require.Equal(t, PeriodDraft, period.Status)
	require.Nil(t, period.LockedAt)

	got, err := svc.GetPeriod(context.Background(), "default", period.ID)
	require.NoError(t, err)
	require.Equal(t, period, got)
}

func TestCreatePeriodValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	in := quarterInput()
	in.Period = 5
	_, err := svc.CreatePeriod(ctx, "default", in)
	require.ErrorIs(t, err, ErrValidation)

	in = quarterInput()
	in.EndDate = in.StartDate
	_, err = svc.CreatePeriod(ctx, "default", in)
	require.ErrorIs(t, err, ErrValidation)

	in = quarterInput()
	in.Type = PeriodMonthly
	in.Period = 13
	_, err = svc.CreatePeriod(ctx, "default", in)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePeriodStatusWalksForward(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	period := mustPeriod(t, svc, "default")

	for _, next := range []PeriodStatus{PeriodInProgress, PeriodReview, PeriodApproved} {
		updated, err := svc.UpdatePeriodStatus(ctx, "default", period.ID, next, "alex")
		require.NoError(t, err)
		require.Equal(t, next, updated.Status)
		require.Nil(t, updated.LockedAt)
	}

	published, err := svc.UpdatePeriodStatus(ctx, "default", period.ID, PeriodPublished, "alex")
	require.NoError(t, err)
	require.Equal(t, PeriodPublished, published.Status)
	require.NotNil(t, published.LockedAt)
	require.Equal(t, "alex", published.LockedBy)
}

func TestUpdatePeriodStatusRejectsSkips(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	period := mustPeriod(t, svc, "default")

	_, err := svc.UpdatePeriodStatus(ctx, "default", period.ID, PeriodReview, "alex")
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdatePeriodStatus(ctx, "default", period.ID, PeriodDraft, "alex")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPublishedPeriodRefusesWrites(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	entity := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	period := mustPeriod(t, svc, "default")

	for _, next := range []PeriodStatus{PeriodInProgress, PeriodReview, PeriodApproved, PeriodPublished} {
		_, err := svc.UpdatePeriodStatus(ctx, "default", period.ID, next, "alex")
		require.NoError(t, err)
	}

	_, err := svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
		EntityID: entity.ID,
		PeriodID: period.ID,
		Entries:  []TrialBalanceEntry{{AccountCode: "1000", Debit: 100}},
	})
	require.ErrorIs(t, err, ErrPeriodLocked)

	_, err = svc.SetCurrencyRates(ctx, "default", period.ID, []RateInput{{Currency: "EUR", ClosingRate: 1.1, AverageRate: 1.05}})
	require.ErrorIs(t, err, ErrPeriodLocked)
}

func TestLockAndUnlockPeriod(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	period := mustPeriod(t, svc, "default")

	locked, err := svc.LockPeriod(ctx, "default", period.ID, "cfo")
	require.NoError(t, err)
	require.Equal(t, PeriodApproved, locked.Status)
	require.True(t, locked.Locked())
	require.Equal(t, "cfo", locked.LockedBy)

	unlocked, err := svc.UnlockPeriod(ctx, "default", period.ID, "cfo")
	require.NoError(t, err)
	require.Equal(t, PeriodInProgress, unlocked.Status)
	require.False(t, unlocked.Locked())
	require.Empty(t, unlocked.LockedBy)
}

func TestListPeriodsFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	mustPeriod(t, svc, "default")

	prior := quarterInput()
	prior.Name = "FY2025 Q2"
	prior.Year = 2025
	_, err := svc.CreatePeriod(ctx, "default", prior)
	require.NoError(t, err)

	all, err := svc.GetPeriods(ctx, "default", PeriodFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 2026, all[0].Year, "newest first")

	only2025, err := svc.GetPeriods(ctx, "default", PeriodFilter{Year: 2025})
	require.NoError(t, err)
	require.Len(t, only2025, 1)
}
