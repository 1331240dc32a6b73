package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// consolidatedFixture builds a holding with an 80% subsidiary, submits both
// trial balances, matches a mirrored receivable/payable pair and generates
// and posts the automatic elimination.
func consolidatedFixture(t *testing.T, svc *Service, stores *MemoryStores) (LegalEntity, LegalEntity, ConsolidationPeriod) {
	t.Helper()
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	sub := mustEntity(t, svc, "default", subsidiaryInput("SUB", holding.ID, 80))
	period := mustPeriod(t, svc, "default")

	_, err := svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
		EntityID: holding.ID,
		PeriodID: period.ID,
		Entries: []TrialBalanceEntry{
			{AccountCode: "1000", AccountName: "Cash", Debit: 900},
			{AccountCode: "1300", AccountName: "IC Receivable", Debit: 100},
			{AccountCode: "5000", AccountName: "Share Capital", Credit: 700},
			{AccountCode: "7000", AccountName: "Revenue", Credit: 500},
			{AccountCode: "6000", AccountName: "Operating Expenses", Debit: 200},
		},
	})
	require.NoError(t, err)
	_, err = svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
		EntityID: sub.ID, PeriodID: period.ID, Entries: subEntries(),
	})
	require.NoError(t, err)

	matchedPair(t, svc, stores, period.ID, holding.ID, sub.ID, 100)
	entries, err := svc.GenerateAutomaticEliminations(ctx, "default", period.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = svc.PostEliminationEntry(ctx, "default", entries[0].ID, "system")
	require.NoError(t, err)
	return holding, sub, period
}

func findLine(t *testing.T, st ConsolidatedStatement, section, code string) StatementLine {
	t.Helper()
	for _, sec := range st.Sections {
		if sec.Name != section {
			continue
		}
		for _, line := range sec.Lines {
			if line.AccountCode == code {
				return line
			}
		}
	}
	t.Fatalf("line %s not found in section %s", code, section)
	return StatementLine{}
}

func TestGenerateBalanceSheet(t *testing.T) {
	svc, stores, _ := newTestService(t)
	holding, sub, period := consolidatedFixture(t, svc, stores)

	st, err := svc.GenerateConsolidatedStatement(context.Background(), "default", period.ID, StatementBalanceSheet)
	require.NoError(t, err)
	require.Equal(t, StatementBalanceSheet, st.Type)
	require.Equal(t, "USD", st.ReportingCurrency)
	require.Len(t, st.Entities, 2)

	cash := findLine(t, st, "Assets", "1000")
	require.Equal(t, 1400.0, cash.Consolidated)
	require.Equal(t, 900.0, cash.Amounts[holding.ID])
	require.Equal(t, 500.0, cash.Amounts[sub.ID])

	receivable := findLine(t, st, "Assets", "1300")
	require.Equal(t, 0.0, receivable.Consolidated, "intercompany receivable is eliminated")
	require.Equal(t, 100.0, receivable.Eliminations)

	payable := findLine(t, st, "Liabilities", "4300")
	require.Equal(t, 0.0, payable.Consolidated, "intercompany payable is eliminated")

	earnings := findLine(t, st, "Equity", "5999")
	require.Equal(t, 600.0, earnings.Consolidated)

	nci := findLine(t, st, "Equity", "5900")
	require.Equal(t, 80.0, nci.Consolidated)
	reclass := findLine(t, st, "Equity", "5901")
	require.Equal(t, -80.0, reclass.Consolidated)

	require.Equal(t, 1400.0, st.Totals["totalAssets"])
	require.Equal(t, 0.0, st.Totals["totalLiabilities"])
	require.Equal(t, 1400.0, st.Totals["totalEquity"])
	require.Equal(t, 80.0, st.Totals["minorityInterest"])
	require.Equal(t, 1320.0, st.Totals["equityAttributableToParent"])
	require.Equal(t, st.Totals["totalAssets"], st.Totals["totalLiabilities"]+st.Totals["totalEquity"],
		"accounting identity must hold after eliminations and NCI")
}

func TestGenerateIncomeStatement(t *testing.T) {
	svc, stores, _ := newTestService(t)
	_, _, period := consolidatedFixture(t, svc, stores)

	st, err := svc.GenerateConsolidatedStatement(context.Background(), "default", period.ID, StatementIncomeStatement)
	require.NoError(t, err)

	require.Equal(t, 900.0, st.Totals["totalRevenue"])
	require.Equal(t, 300.0, st.Totals["totalExpenses"])
	require.Equal(t, 600.0, st.Totals["netIncome"])
	require.Equal(t, 60.0, st.Totals["minorityInterestIncome"])
	require.Equal(t, 540.0, st.Totals["netIncomeAttributableToParent"])
}

func TestGenerateCashFlowSkeleton(t *testing.T) {
	svc, stores, _ := newTestService(t)
	_, _, period := consolidatedFixture(t, svc, stores)

	st, err := svc.GenerateConsolidatedStatement(context.Background(), "default", period.ID, StatementCashFlow)
	require.NoError(t, err)
	require.Len(t, st.Sections, 3)
	require.Equal(t, 600.0, st.Totals["operatingCashFlow"])
	require.Equal(t, 0.0, st.Totals["investingCashFlow"])
	require.Equal(t, 0.0, st.Totals["financingCashFlow"])
	require.Equal(t, 600.0, st.Totals["netCashChange"])
}

func TestGenerateStatementBalanceSheetMatchesIncome(t *testing.T) {
	svc, stores, _ := newTestService(t)
	_, _, period := consolidatedFixture(t, svc, stores)
	ctx := context.Background()

	bs, err := svc.GenerateConsolidatedStatement(ctx, "default", period.ID, StatementBalanceSheet)
	require.NoError(t, err)
	is, err := svc.GenerateConsolidatedStatement(ctx, "default", period.ID, StatementIncomeStatement)
	require.NoError(t, err)

	earnings := findLine(t, bs, "Equity", "5999")
	require.Equal(t, is.Totals["netIncome"], earnings.Consolidated,
		"balance sheet earnings must agree with the income statement")
}

func TestGenerateStatementUnknownType(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GenerateConsolidatedStatement(context.Background(), "default", "p1", "TRIAL_BALANCE")
	require.ErrorIs(t, err, ErrValidation)
}

func TestGenerateAllStatements(t *testing.T) {
	svc, stores, _ := newTestService(t)
	_, _, period := consolidatedFixture(t, svc, stores)

	statements, err := svc.GenerateAllStatements(context.Background(), "default", period.ID)
	require.NoError(t, err)
	require.Len(t, statements, 3)
	require.Equal(t, StatementBalanceSheet, statements[0].Type)
	require.Equal(t, StatementIncomeStatement, statements[1].Type)
	require.Equal(t, StatementCashFlow, statements[2].Type)
}

func TestEquityMethodPresentation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	holding := mustEntity(t, svc, "default", holdingInput("HOLDCO"))
	in := subsidiaryInput("ASSOC", holding.ID, 30)
	in.Type = EntityAssociate
	in.ConsolidationMethod = MethodEquity
	assoc := mustEntity(t, svc, "default", in)
	period := mustPeriod(t, svc, "default")

	_, err := svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
		EntityID: holding.ID, PeriodID: period.ID, Entries: standardEntries(),
	})
	require.NoError(t, err)
	_, err = svc.SubmitTrialBalance(ctx, "default", SubmitTrialBalanceInput{
		EntityID: assoc.ID, PeriodID: period.ID, Entries: subEntries(),
	})
	require.NoError(t, err)

	bs, err := svc.GenerateConsolidatedStatement(ctx, "default", period.ID, StatementBalanceSheet)
	require.NoError(t, err)

	// The associate folds in as one net investment line, not line by line.
	investment := findLine(t, bs, "Assets", "2600-ASSOC")
	require.Equal(t, 120.0, investment.Consolidated)
	reserve := findLine(t, bs, "Equity", "5800-ASSOC")
	require.Equal(t, 30.0, reserve.Consolidated)

	is, err := svc.GenerateConsolidatedStatement(ctx, "default", period.ID, StatementIncomeStatement)
	require.NoError(t, err)
	share := findLine(t, is, "Revenue", "7900-ASSOC")
	require.Equal(t, 90.0, share.Consolidated)
	require.Equal(t, 390.0, is.Totals["netIncome"])

	require.Equal(t, bs.Totals["totalAssets"], bs.Totals["totalLiabilities"]+bs.Totals["totalEquity"])
}

func TestMatchesPattern(t *testing.T) {
	cases := []struct {
		pattern string
		code    string
		want    bool
	}{
		{"13*", "1300", true},
		{"13*", "1299", false},
		{"1300", "1300", true},
		{"1300", "1301", false},
		{"", "1300", false},
		{"*", "anything", true},
	}
	for _, tc := range cases {
		if got := matchesPattern(tc.pattern, tc.code); got != tc.want {
			t.Fatalf("matchesPattern(%q, %q) = %v, want %v", tc.pattern, tc.code, got, tc.want)
		}
	}
}
