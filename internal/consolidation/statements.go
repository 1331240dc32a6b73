package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// GenerateConsolidatedStatement builds one consolidated statement for a
// period. Statements are derived on demand and never stored; concurrent
// requests for the same statement share a single computation.
func (s *Service) GenerateConsolidatedStatement(ctx context.Context, tenantID, periodID string, stype StatementType) (ConsolidatedStatement, error) {
	switch stype {
	case StatementBalanceSheet, StatementIncomeStatement, StatementCashFlow:
	default:
		return ConsolidatedStatement{}, fmt.Errorf("%w: unknown statement type %q", ErrValidation, stype)
	}
	key := tenantID + "|" + periodID + "|" + string(stype)
	v, err, _ := s.sf.Do(key, func() (any, error) {
		return s.buildStatement(ctx, tenantID, periodID, stype)
	})
	if err != nil {
		return ConsolidatedStatement{}, err
	}
	return v.(ConsolidatedStatement), nil
}

// GenerateAllStatements builds the three consolidated statements in order.
func (s *Service) GenerateAllStatements(ctx context.Context, tenantID, periodID string) ([]ConsolidatedStatement, error) {
	out := make([]ConsolidatedStatement, 0, 3)
	for _, stype := range []StatementType{StatementBalanceSheet, StatementIncomeStatement, StatementCashFlow} {
		st, err := s.GenerateConsolidatedStatement(ctx, tenantID, periodID, stype)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// consolidationInputs gathers everything a statement needs in one pass.
type consolidationInputs struct {
	period   ConsolidationPeriod
	entities []LegalEntity
	byID     map[string]LegalEntity
	balances map[string]TrialBalance
	elimNet  map[string]float64 // account code -> sum(debit - credit) over posted eliminations
	currency string
}

func (s *Service) gatherInputs(ctx context.Context, tenantID, periodID string) (consolidationInputs, error) {
	period, err := s.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return consolidationInputs{}, err
	}
	entities, err := s.stores.Entities.ListEntities(ctx, tenantID, EntityFilter{})
	if err != nil {
		return consolidationInputs{}, err
	}
	balances, err := s.translatedBalances(ctx, tenantID, periodID, entities)
	if err != nil {
		return consolidationInputs{}, err
	}
	entries, err := s.stores.Eliminations.ListEntries(ctx, tenantID, periodID, EntryFilter{Status: EntryPosted})
	if err != nil {
		return consolidationInputs{}, err
	}

	in := consolidationInputs{
		period:   period,
		entities: entities,
		byID:     make(map[string]LegalEntity, len(entities)),
		balances: balances,
		elimNet:  make(map[string]float64),
		currency: "USD",
	}
	for _, e := range entities {
		in.byID[e.ID] = e
		if e.IsActive && e.ReportingCurrency != "" {
			in.currency = e.ReportingCurrency
		}
	}
	for _, entry := range entries {
		for _, line := range entry.Lines {
			amt := line.Debit - line.Credit
			if line.ExchangeRate > 0 {
				amt *= line.ExchangeRate
			}
			in.elimNet[line.AccountCode] += amt
		}
	}
	return in, nil
}

// weightFor returns the consolidation weight applied to an entity's
// balances: full subsidiaries fold in whole, proportional ones by ownership
// share. Equity-method and excluded entities contribute no lines.
func weightFor(e LegalEntity) (float64, bool) {
	switch e.ConsolidationMethod {
	case MethodFull:
		return 1, true
	case MethodProportional:
		return e.OwnershipPercentage / 100, true
	default:
		return 0, false
	}
}

// lineKey keeps lines stable across entities using different names for the
// same account code.
type lineAgg struct {
	code    string
	name    string
	class   AccountClass
	amounts map[string]float64
}

// aggregateLines folds the translated balances into per-account lines for
// the classes wanted, applying method weights and elimination netting.
func (in consolidationInputs) aggregateLines(want func(AccountClass) bool) []lineAgg {
	byCode := make(map[string]*lineAgg)
	for _, entity := range in.entities {
		weight, ok := weightFor(entity)
		if !ok {
			continue
		}
		tb, ok := in.balances[entity.ID]
		if !ok {
			continue
		}
		for _, acct := range tb.Accounts {
			if !want(acct.Class) {
				continue
			}
			agg, ok := byCode[acct.AccountCode]
			if !ok {
				agg = &lineAgg{
					code:    acct.AccountCode,
					name:    acct.AccountName,
					class:   acct.Class,
					amounts: make(map[string]float64),
				}
				byCode[acct.AccountCode] = agg
			}
			agg.amounts[entity.ID] += round2(naturalAmount(acct.Class, acct.Debit, acct.Credit) * weight)
		}
	}
	out := make([]lineAgg, 0, len(byCode))
	for _, agg := range byCode {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].code < out[j].code })
	return out
}

// consolidated nets the elimination impact into a line's natural-side total.
// Elimination lines are stored as debit minus credit, so a debit-natural
// account adds the net and a credit-natural account subtracts it.
func (in consolidationInputs) consolidated(agg lineAgg) StatementLine {
	var total float64
	for _, v := range agg.amounts {
		total += v
	}
	elim := in.elimNet[agg.code]
	var cons float64
	if debitNatural(agg.class) {
		cons = total + elim
	} else {
		cons = total - elim
	}
	amounts := make(map[string]float64, len(agg.amounts))
	for k, v := range agg.amounts {
		amounts[k] = round2(v)
	}
	return StatementLine{
		AccountCode:  agg.code,
		AccountName:  agg.name,
		Amounts:      amounts,
		Eliminations: round2(-elim),
		Consolidated: round2(cons),
	}
}

func sectionOf(name string, lines []StatementLine) StatementSection {
	var subtotal float64
	for _, l := range lines {
		subtotal += l.Consolidated
	}
	return StatementSection{Name: name, Lines: lines, Subtotal: round2(subtotal)}
}

// consolidatedNetIncome computes the group income statement result from the
// same aggregation pipeline the statements use, so balance sheet earnings
// and income statement totals always agree.
func (in consolidationInputs) consolidatedNetIncome() (revenue, expenses, netIncome float64) {
	for _, agg := range in.aggregateLines(func(c AccountClass) bool { return c == ClassRevenue }) {
		revenue += in.consolidated(agg).Consolidated
	}
	for _, agg := range in.aggregateLines(func(c AccountClass) bool { return c == ClassExpense }) {
		expenses += in.consolidated(agg).Consolidated
	}
	// Equity-method holdings contribute their share of profit.
	for _, e := range in.entities {
		if e.ConsolidationMethod != MethodEquity {
			continue
		}
		if tb, ok := in.balances[e.ID]; ok {
			_, ni := netPosition(tb)
			revenue += round2(ni * e.OwnershipPercentage / 100)
		}
	}
	return round2(revenue), round2(expenses), round2(revenue - expenses)
}

func (s *Service) buildStatement(ctx context.Context, tenantID, periodID string, stype StatementType) (ConsolidatedStatement, error) {
	in, err := s.gatherInputs(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidatedStatement{}, err
	}

	st := ConsolidatedStatement{
		PeriodID:          periodID,
		PeriodName:        in.period.Name,
		Type:              stype,
		ReportingCurrency: in.currency,
		GeneratedAt:       s.now(),
		Totals:            make(map[string]float64),
	}
	for _, e := range in.entities {
		if _, ok := in.balances[e.ID]; ok {
			st.Entities = append(st.Entities, e.Name)
		}
	}
	sort.Strings(st.Entities)

	switch stype {
	case StatementBalanceSheet:
		err = s.buildBalanceSheet(ctx, tenantID, in, &st)
	case StatementIncomeStatement:
		err = s.buildIncomeStatement(ctx, tenantID, in, &st)
	case StatementCashFlow:
		err = s.buildCashFlow(in, &st)
	}
	if err != nil {
		return ConsolidatedStatement{}, err
	}

	s.log().Info("generated consolidated statement",
		slog.String("period_id", periodID),
		slog.String("type", string(stype)),
		slog.Int("entities", len(st.Entities)))
	return st, nil
}

func (s *Service) buildBalanceSheet(ctx context.Context, tenantID string, in consolidationInputs, st *ConsolidatedStatement) error {
	assets := make([]StatementLine, 0)
	for _, agg := range in.aggregateLines(func(c AccountClass) bool { return c == ClassAsset }) {
		assets = append(assets, in.consolidated(agg))
	}
	liabilities := make([]StatementLine, 0)
	for _, agg := range in.aggregateLines(func(c AccountClass) bool { return c == ClassLiability }) {
		liabilities = append(liabilities, in.consolidated(agg))
	}
	equity := make([]StatementLine, 0)
	for _, agg := range in.aggregateLines(func(c AccountClass) bool { return c == ClassEquity }) {
		equity = append(equity, in.consolidated(agg))
	}

	// Equity-method holdings appear as a single net investment line, with
	// an equity-side reserve covering the non-income part so the sheet
	// stays balanced (the income share lands in current period earnings).
	for _, e := range in.entities {
		if e.ConsolidationMethod != MethodEquity {
			continue
		}
		tb, ok := in.balances[e.ID]
		if !ok {
			continue
		}
		na, ni := netPosition(tb)
		share := e.OwnershipPercentage / 100
		assets = append(assets, StatementLine{
			AccountCode:  "2600-" + e.Code,
			AccountName:  "Investment in " + e.Name,
			Amounts:      map[string]float64{e.ID: round2(na * share)},
			Consolidated: round2(na * share),
		})
		equity = append(equity, StatementLine{
			AccountCode:  "5800-" + e.Code,
			AccountName:  "Equity-accounted reserves: " + e.Name,
			Amounts:      map[string]float64{e.ID: round2((na - ni) * share)},
			Consolidated: round2((na - ni) * share),
		})
	}

	// Retained result of the period keeps the sheet in balance with the
	// income statement.
	_, _, netIncome := in.consolidatedNetIncome()
	equity = append(equity, StatementLine{
		AccountCode:  "5999",
		AccountName:  "Current Period Earnings",
		Amounts:      map[string]float64{},
		Consolidated: netIncome,
	})

	// Non-controlling interests are carved out of group equity as a
	// reclassification pair so the subtotal is untouched.
	mi, err := s.CalculateMinorityInterest(ctx, tenantID, in.period.ID)
	if err != nil {
		return err
	}
	// Translated net assets already carry the period result, so the
	// income share is not added again here.
	nci := mi.TotalMinorityInterest
	if nci != 0 {
		equity = append(equity,
			StatementLine{
				AccountCode:  "5900",
				AccountName:  "Non-controlling interests",
				Amounts:      map[string]float64{},
				Consolidated: nci,
			},
			StatementLine{
				AccountCode:  "5901",
				AccountName:  "Reclassified from group equity",
				Amounts:      map[string]float64{},
				Consolidated: -nci,
			},
		)
	}

	assetsSec := sectionOf("Assets", assets)
	liabSec := sectionOf("Liabilities", liabilities)
	equitySec := sectionOf("Equity", equity)
	st.Sections = []StatementSection{assetsSec, liabSec, equitySec}
	st.Totals["totalAssets"] = assetsSec.Subtotal
	st.Totals["totalLiabilities"] = liabSec.Subtotal
	st.Totals["totalEquity"] = equitySec.Subtotal
	st.Totals["minorityInterest"] = nci
	st.Totals["equityAttributableToParent"] = round2(equitySec.Subtotal - nci)
	return nil
}

func (s *Service) buildIncomeStatement(ctx context.Context, tenantID string, in consolidationInputs, st *ConsolidatedStatement) error {
	revenue := make([]StatementLine, 0)
	for _, agg := range in.aggregateLines(func(c AccountClass) bool { return c == ClassRevenue }) {
		revenue = append(revenue, in.consolidated(agg))
	}
	expenses := make([]StatementLine, 0)
	for _, agg := range in.aggregateLines(func(c AccountClass) bool { return c == ClassExpense }) {
		expenses = append(expenses, in.consolidated(agg))
	}

	for _, e := range in.entities {
		if e.ConsolidationMethod != MethodEquity {
			continue
		}
		tb, ok := in.balances[e.ID]
		if !ok {
			continue
		}
		_, ni := netPosition(tb)
		share := round2(ni * e.OwnershipPercentage / 100)
		revenue = append(revenue, StatementLine{
			AccountCode:  "7900-" + e.Code,
			AccountName:  "Share of profit of " + e.Name,
			Amounts:      map[string]float64{e.ID: share},
			Consolidated: share,
		})
	}

	revSec := sectionOf("Revenue", revenue)
	expSec := sectionOf("Expenses", expenses)
	st.Sections = []StatementSection{revSec, expSec}
	netIncome := round2(revSec.Subtotal - expSec.Subtotal)

	mi, err := s.CalculateMinorityInterest(ctx, tenantID, in.period.ID)
	if err != nil {
		return err
	}
	st.Totals["totalRevenue"] = revSec.Subtotal
	st.Totals["totalExpenses"] = expSec.Subtotal
	st.Totals["netIncome"] = netIncome
	st.Totals["minorityInterestIncome"] = mi.TotalMinorityIncome
	st.Totals["netIncomeAttributableToParent"] = round2(netIncome - mi.TotalMinorityIncome)
	return nil
}

// buildCashFlow derives an indirect-method skeleton. Only closing balances
// are available, so the operating section starts and ends at consolidated
// net income; movement lines stay at zero until comparative periods land.
func (s *Service) buildCashFlow(in consolidationInputs, st *ConsolidatedStatement) error {
	_, _, netIncome := in.consolidatedNetIncome()
	operating := []StatementLine{
		{AccountName: "Net Income", Amounts: map[string]float64{}, Consolidated: netIncome},
		{AccountName: "Depreciation and Amortization", Amounts: map[string]float64{}},
		{AccountName: "Changes in Working Capital", Amounts: map[string]float64{}},
	}
	opSec := sectionOf("Operating Activities", operating)
	invSec := sectionOf("Investing Activities", nil)
	finSec := sectionOf("Financing Activities", nil)
	st.Sections = []StatementSection{opSec, invSec, finSec}
	st.Totals["operatingCashFlow"] = opSec.Subtotal
	st.Totals["investingCashFlow"] = invSec.Subtotal
	st.Totals["financingCashFlow"] = finSec.Subtotal
	st.Totals["netCashChange"] = round2(opSec.Subtotal + invSec.Subtotal + finSec.Subtotal)
	return nil
}

// matchesPattern reports whether an account code satisfies a rule pattern.
// Patterns are literal prefixes with a trailing star.
func matchesPattern(pattern, code string) bool {
	if pattern == "" {
		return false
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(code, prefix)
	}
	return pattern == code
}
