package consolidation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func balancedLines(entityA, entityB string) []JournalLine {
	return []JournalLine{
		{EntityID: entityA, AccountCode: "1300", Description: "Remove receivable", Credit: 100},
		{EntityID: entityB, AccountCode: "4300", Description: "Remove payable", Debit: 100},
	}
}

func TestCreateEliminationEntry(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	entry, err := svc.CreateEliminationEntry(ctx, "default", period.ID, CreateEntryInput{
		Description: "Manual IC elimination",
		Lines:       balancedLines(holding.ID, sub.ID),
	})
	require.NoError(t, err)
	require.Equal(t, EntryDraft, entry.Status)
	require.Equal(t, 100.0, entry.Amount)
	require.Nil(t, entry.PostedAt)
}

func TestCreateEliminationEntryRejectsUnbalanced(t *testing.T) {
	svc, _, _ := newTestService(t)
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	_, err := svc.CreateEliminationEntry(context.Background(), "default", period.ID, CreateEntryInput{
		Description: "Off by ten",
		Lines: []JournalLine{
			{EntityID: holding.ID, AccountCode: "1300", Credit: 100},
			{EntityID: sub.ID, AccountCode: "4300", Debit: 90},
		},
	})
	require.ErrorIs(t, err, ErrEntryUnbalanced)
}

func TestCreateEliminationEntryValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	period := mustPeriod(t, svc, "default")

	_, err := svc.CreateEliminationEntry(ctx, "default", period.ID, CreateEntryInput{
		Description: "Single line",
		Lines:       []JournalLine{{EntityID: holding.ID, AccountCode: "1300", Credit: 100}},
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateEliminationEntry(ctx, "default", period.ID, CreateEntryInput{
		Description: "Both sides on one line",
		Lines: []JournalLine{
			{EntityID: holding.ID, AccountCode: "1300", Debit: 100, Credit: 100},
			{EntityID: holding.ID, AccountCode: "4300"},
		},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestPostEliminationEntryIsOneWay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	entry, err := svc.CreateEliminationEntry(ctx, "default", period.ID, CreateEntryInput{
		Description: "Manual IC elimination",
		Lines:       balancedLines(holding.ID, sub.ID),
	})
	require.NoError(t, err)

	posted, err := svc.PostEliminationEntry(ctx, "default", entry.ID, "controller")
	require.NoError(t, err)
	require.Equal(t, EntryPosted, posted.Status)
	require.Equal(t, "controller", posted.PostedBy)
	require.NotNil(t, posted.PostedAt)

	_, err = svc.PostEliminationEntry(ctx, "default", entry.ID, "controller")
	require.ErrorIs(t, err, ErrAlreadyPosted)

	err = svc.DeleteEliminationEntry(ctx, "default", entry.ID)
	require.ErrorIs(t, err, ErrEntryPosted)
}

func TestDeleteDraftEliminationEntry(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	entry, err := svc.CreateEliminationEntry(ctx, "default", period.ID, CreateEntryInput{
		Description: "Manual IC elimination",
		Lines:       balancedLines(holding.ID, sub.ID),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEliminationEntry(ctx, "default", entry.ID))
	_, err = svc.GetEliminationEntry(ctx, "default", entry.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)
}

// pendingLeg seeds one imported PENDING leg directly in the store.
func pendingLeg(t *testing.T, stores *MemoryStores, periodID, sourceID, targetID string, typ TransactionType, account, currency string, amount float64) IntercompanyTransaction {
	t.Helper()
	txn := IntercompanyTransaction{
		ID:             uuid.NewString(),
		TenantID:       "default",
		PeriodID:       periodID,
		SourceEntityID: sourceID,
		TargetEntityID: targetID,
		Type:           typ,
		AccountCode:    account,
		Amount:         amount,
		Currency:       currency,
		Status:         TxnPending,
		CreatedAt:      testTime,
	}
	require.NoError(t, stores.InsertTransaction(context.Background(), txn))
	return txn
}

// matchedPair seeds a mirrored pending receivable/payable pair, sweeps the
// period and returns both legs MATCHED.
func matchedPair(t *testing.T, svc *Service, stores *MemoryStores, periodID, holdingID, subID string, amount float64) (IntercompanyTransaction, IntercompanyTransaction) {
	t.Helper()
	ctx := context.Background()
	recv := pendingLeg(t, stores, periodID, holdingID, subID, TypeIntercompanyReceivable, "1300", "USD", amount)
	pay := pendingLeg(t, stores, periodID, subID, holdingID, TypeIntercompanyPayable, "4300", "USD", amount)
	_, err := svc.MatchIntercompanyTransactions(ctx, "default", periodID)
	require.NoError(t, err)
	leg1, err := svc.GetIntercompanyTransaction(ctx, "default", recv.ID)
	require.NoError(t, err)
	leg2, err := svc.GetIntercompanyTransaction(ctx, "default", pay.ID)
	require.NoError(t, err)
	require.Equal(t, TxnMatched, leg1.Status)
	require.Equal(t, TxnMatched, leg2.Status)
	return leg1, leg2
}

func TestGenerateAutomaticEliminations(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")
	leg1, leg2 := matchedPair(t, svc, stores, period.ID, holding.ID, sub.ID, 100)

	entries, err := svc.GenerateAutomaticEliminations(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Generated entries start out DRAFT and are posted separately.
	entry := entries[0]
	require.Equal(t, EntryDraft, entry.Status)
	require.Empty(t, entry.PostedBy)
	require.Nil(t, entry.PostedAt)
	require.Equal(t, "rule_ic_arap", entry.RuleID)
	require.Equal(t, 100.0, entry.Amount)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, 100.0, entry.Lines[0].Credit, "receivable side is credited away")
	require.Equal(t, 100.0, entry.Lines[1].Debit, "payable side is debited away")
	require.Equal(t, 1.0, entry.Lines[0].ExchangeRate)

	for _, id := range []string{leg1.ID, leg2.ID} {
		txn, err := svc.GetIntercompanyTransaction(ctx, "default", id)
		require.NoError(t, err)
		require.Equal(t, TxnEliminated, txn.Status)
		require.Equal(t, entry.ID, txn.EliminationEntryID)
	}

	posted, err := svc.PostEliminationEntry(ctx, "default", entry.ID, "controller")
	require.NoError(t, err)
	require.Equal(t, EntryPosted, posted.Status)
	require.Equal(t, "controller", posted.PostedBy)
}

func TestGenerateAutomaticEliminationsIsIdempotent(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")
	matchedPair(t, svc, stores, period.ID, holding.ID, sub.ID, 100)

	first, err := svc.GenerateAutomaticEliminations(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.GenerateAutomaticEliminations(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Empty(t, second, "eliminated legs are not revisited")
}

func TestGenerateAutomaticEliminationsNoMatches(t *testing.T) {
	svc, _, _ := newTestService(t)
	period := mustPeriod(t, svc, "default")

	entries, err := svc.GenerateAutomaticEliminations(context.Background(), "default", period.ID)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGenerateAutomaticEliminationsForeignCurrency(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	pendingLeg(t, stores, period.ID, holding.ID, sub.ID, TypeIntercompanyReceivable, "1300", "EUR", 100)
	pendingLeg(t, stores, period.ID, sub.ID, holding.ID, TypeIntercompanyPayable, "4300", "EUR", 100)
	result, err := svc.MatchIntercompanyTransactions(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Matched)

	// Without a closing rate the run must fail rather than eliminate at par.
	_, err = svc.GenerateAutomaticEliminations(ctx, "default", period.ID)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.SetCurrencyRates(ctx, "default", period.ID, []RateInput{
		{Currency: "EUR", ClosingRate: 1.1, AverageRate: 1.05},
	})
	require.NoError(t, err)

	entries, err := svc.GenerateAutomaticEliminations(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1.1, entries[0].Lines[0].ExchangeRate)
	require.Equal(t, 110.0, entries[0].Lines[0].ReportingAmount)
}

func TestGenerateAutomaticEliminationsRevenueExpense(t *testing.T) {
	svc, stores, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	pendingLeg(t, stores, period.ID, holding.ID, sub.ID, TypeIntercompanyRevenue, "7000", "USD", 60)
	pendingLeg(t, stores, period.ID, sub.ID, holding.ID, TypeIntercompanyExpense, "6000", "USD", 60)
	result, err := svc.MatchIntercompanyTransactions(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Matched)

	entries, err := svc.GenerateAutomaticEliminations(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "rule_ic_revexp", entries[0].RuleID)
	require.Equal(t, 60.0, entries[0].Lines[0].Debit, "revenue side is debited away")
	require.Equal(t, 60.0, entries[0].Lines[1].Credit, "expense side is credited away")
}
