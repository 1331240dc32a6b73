package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func subEntries() []TrialBalanceEntry {
	return []TrialBalanceEntry{
		{AccountCode: "1000", AccountName: "Cash", Debit: 500},
		{AccountCode: "4300", AccountName: "IC Payable", Credit: 100},
		{AccountCode: "5000", AccountName: "Share Capital", Credit: 100},
		{AccountCode: "7000", AccountName: "Revenue", Credit: 400},
		{AccountCode: "6000", AccountName: "Operating Expenses", Debit: 100},
	}
}

func TestNetPosition(t *testing.T) {
	tb := TrialBalance{Accounts: []TrialBalanceAccount{
		{Class: ClassAsset, Debit: 500},
		{Class: ClassLiability, Credit: 100},
		{Class: ClassEquity, Credit: 100},
		{Class: ClassRevenue, Credit: 400},
		{Class: ClassExpense, Debit: 100},
	}}
	netAssets, netIncome := netPosition(tb)
	if netAssets != 400 {
		t.Fatalf("netAssets = %v, want 400", netAssets)
	}
	if netIncome != 300 {
		t.Fatalf("netIncome = %v, want 300", netIncome)
	}
}

func TestCalculateMinorityInterestFullMethod(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	_, err := svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
		EntityID: sub.ID, PeriodID: period.ID, Entries: subEntries(),
	})
	require.NoError(t, err)

	result, err := svc.CalculateMinorityInterest(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	require.Equal(t, sub.ID, row.EntityID)
	require.Equal(t, 20.0, row.MinorityPercentage)
	require.Equal(t, 400.0, row.NetAssets)
	require.Equal(t, 300.0, row.NetIncome)
	require.Equal(t, 80.0, row.MinorityInterest)
	require.Equal(t, 60.0, row.MinorityIncome)
	require.Equal(t, 80.0, result.TotalMinorityInterest)
	require.Equal(t, 60.0, result.TotalMinorityIncome)
}

func TestCalculateMinorityInterestProportionalScalesBase(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	in := subsidiaryInput("JV", holding.ID, 60)
	in.Type = EntityJointVenture
	in.ConsolidationMethod = MethodProportional
	jv := mustEntity(t, svc, "default", in)
	period := mustPeriod(t, svc, "default")

	_, err := svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
		EntityID: jv.ID, PeriodID: period.ID, Entries: subEntries(),
	})
	require.NoError(t, err)

	result, err := svc.CalculateMinorityInterest(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	// Only the owned 60% of net assets is folded in; the outside 40%
	// applies to that reduced base.
	row := result.Rows[0]
	require.Equal(t, 240.0, row.NetAssets)
	require.Equal(t, 96.0, row.MinorityInterest)
}

func TestCalculateMinorityInterestSkips(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))

	wholly := mustEntity(t, svc, "default", subsidiaryInput("WHOLE", holding.ID, 100))
	equityIn := subsidiaryInput("ASSOC", holding.ID, 30)
	equityIn.Type = EntityAssociate
	equityIn.ConsolidationMethod = MethodEquity
	assoc := mustEntity(t, svc, "default", equityIn)
	noTB := mustEntity(t, svc, "default", subsidiaryInput("EMPTY", holding.ID, 70))
	_ = noTB

	period := mustPeriod(t, svc, "default")
	for _, id := range []string{wholly.ID, assoc.ID} {
		_, err := svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
			EntityID: id, PeriodID: period.ID, Entries: subEntries(),
		})
		require.NoError(t, err)
	}

	result, err := svc.CalculateMinorityInterest(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Empty(t, result.Rows, "wholly owned, equity-method and unsubmitted entities carry no NCI")
	require.Equal(t, 0.0, result.TotalMinorityInterest)
}
