package consolidation

import (
	"context"
	"sort"
	"time"

	"github.com/consolidex/consolidex/internal/shared"
)

// ConsolidationSummary is a dashboard snapshot for one period.
type ConsolidationSummary struct {
	PeriodID            string                    `json:"periodId"`
	PeriodName          string                    `json:"periodName"`
	Status              PeriodStatus              `json:"status"`
	Entities            int                       `json:"entities"`
	BalancesSubmitted   int                       `json:"balancesSubmitted"`
	TransactionsByState map[TransactionStatus]int `json:"transactionsByState"`
	EliminationTotal    float64                   `json:"eliminationTotal"`
	EliminationEntries  int                       `json:"eliminationEntries"`
	TotalAssets         float64                   `json:"totalAssets"`
	TotalLiabilities    float64                   `json:"totalLiabilities"`
	TotalEquity         float64                   `json:"totalEquity"`
	NetIncome           float64                   `json:"netIncome"`
}

// GetConsolidationSummary aggregates the period's headline numbers.
func (s *Service) GetConsolidationSummary(ctx context.Context, tenantID, periodID string) (ConsolidationSummary, error) {
	period, err := s.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationSummary{}, err
	}
	entities, err := s.stores.Entities.ListEntities(ctx, tenantID, EntityFilter{})
	if err != nil {
		return ConsolidationSummary{}, err
	}
	balances, err := s.stores.Balances.ListTrialBalances(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationSummary{}, err
	}
	txns, err := s.stores.Transactions.ListTransactions(ctx, tenantID, periodID, TransactionFilter{})
	if err != nil {
		return ConsolidationSummary{}, err
	}
	entries, err := s.stores.Eliminations.ListEntries(ctx, tenantID, periodID, EntryFilter{})
	if err != nil {
		return ConsolidationSummary{}, err
	}

	summary := ConsolidationSummary{
		PeriodID:            periodID,
		PeriodName:          period.Name,
		Status:              period.Status,
		Entities:            len(entities),
		BalancesSubmitted:   len(balances),
		TransactionsByState: make(map[TransactionStatus]int),
		EliminationEntries:  len(entries),
	}
	for _, t := range txns {
		summary.TransactionsByState[t.Status]++
	}
	for _, e := range entries {
		summary.EliminationTotal += e.Amount
	}
	summary.EliminationTotal = round2(summary.EliminationTotal)

	if len(balances) > 0 {
		bs, err := s.GenerateConsolidatedStatement(ctx, tenantID, periodID, StatementBalanceSheet)
		if err != nil {
			return ConsolidationSummary{}, err
		}
		is, err := s.GenerateConsolidatedStatement(ctx, tenantID, periodID, StatementIncomeStatement)
		if err != nil {
			return ConsolidationSummary{}, err
		}
		summary.TotalAssets = bs.Totals["totalAssets"]
		summary.TotalLiabilities = bs.Totals["totalLiabilities"]
		summary.TotalEquity = bs.Totals["totalEquity"]
		summary.NetIncome = is.Totals["netIncome"]
	}
	return summary, nil
}

// IntercompanyPairReport aggregates one entity pair's open exposure.
type IntercompanyPairReport struct {
	SourceEntityID string  `json:"sourceEntityId"`
	TargetEntityID string  `json:"targetEntityId"`
	Transactions   int     `json:"transactions"`
	TotalAmount    float64 `json:"totalAmount"`
	Unresolved     float64 `json:"unresolved"`
}

// GetIntercompanyReport groups a period's transactions by ordered entity
// pair with their unresolved exposure.
func (s *Service) GetIntercompanyReport(ctx context.Context, tenantID, periodID string) ([]IntercompanyPairReport, error) {
	txns, err := s.GetIntercompanyTransactions(ctx, tenantID, periodID, TransactionFilter{})
	if err != nil {
		return nil, err
	}
	byPair := make(map[string]*IntercompanyPairReport)
	for _, t := range txns {
		a, b := t.SourceEntityID, t.TargetEntityID
		if b < a {
			a, b = b, a
		}
		key := a + "|" + b
		r, ok := byPair[key]
		if !ok {
			r = &IntercompanyPairReport{SourceEntityID: a, TargetEntityID: b}
			byPair[key] = r
		}
		r.Transactions++
		r.TotalAmount += t.Amount
		if t.Status == TxnPending || t.Status == TxnException {
			r.Unresolved += t.Amount
		}
	}
	out := make([]IntercompanyPairReport, 0, len(byPair))
	for _, r := range byPair {
		r.TotalAmount = round2(r.TotalAmount)
		r.Unresolved = round2(r.Unresolved)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceEntityID != out[j].SourceEntityID {
			return out[i].SourceEntityID < out[j].SourceEntityID
		}
		return out[i].TargetEntityID < out[j].TargetEntityID
	})
	return out, nil
}

// ReconciliationItem is one unresolved transaction with the rule that
// would have eliminated it.
type ReconciliationItem struct {
	Transaction IntercompanyTransaction `json:"transaction"`
	RuleID      string                  `json:"ruleId"`
	RuleName    string                  `json:"ruleName"`
}

// GetReconciliationReport lists the period's unresolved legs, annotated
// with the elimination rule whose account pattern covers them.
func (s *Service) GetReconciliationReport(ctx context.Context, tenantID, periodID string) ([]ReconciliationItem, error) {
	txns, err := s.GetIntercompanyTransactions(ctx, tenantID, periodID, TransactionFilter{})
	if err != nil {
		return nil, err
	}
	items := make([]ReconciliationItem, 0)
	for _, t := range txns {
		if t.Status != TxnPending && t.Status != TxnException {
			continue
		}
		item := ReconciliationItem{Transaction: t}
		for _, rule := range s.rules {
			if !rule.IsActive {
				continue
			}
			if matchesPattern(rule.SourceAccountPattern, t.AccountCode) || matchesPattern(rule.TargetAccountPattern, t.AccountCode) {
				item.RuleID = rule.ID
				item.RuleName = rule.Name
				break
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// EntityContribution is one entity's weighted share of the group result.
type EntityContribution struct {
	EntityID   string              `json:"entityId"`
	EntityName string              `json:"entityName"`
	Method     ConsolidationMethod `json:"method"`
	Revenue    float64             `json:"revenue"`
	Expenses   float64             `json:"expenses"`
	NetIncome  float64             `json:"netIncome"`
	NetAssets  float64             `json:"netAssets"`
}

// GetEntityContributionReport breaks the consolidated result down by
// entity, after translation and method weighting but before eliminations.
func (s *Service) GetEntityContributionReport(ctx context.Context, tenantID, periodID string) ([]EntityContribution, error) {
	if _, err := s.GetPeriod(ctx, tenantID, periodID); err != nil {
		return nil, err
	}
	entities, err := s.stores.Entities.ListEntities(ctx, tenantID, EntityFilter{})
	if err != nil {
		return nil, err
	}
	balances, err := s.translatedBalances(ctx, tenantID, periodID, entities)
	if err != nil {
		return nil, err
	}
	out := make([]EntityContribution, 0, len(balances))
	for _, entity := range entities {
		tb, ok := balances[entity.ID]
		if !ok {
			continue
		}
		weight := 1.0
		switch entity.ConsolidationMethod {
		case MethodProportional, MethodEquity:
			weight = entity.OwnershipPercentage / 100
		}
		var revenue, expenses float64
		for _, acct := range tb.Accounts {
			amt := naturalAmount(acct.Class, acct.Debit, acct.Credit)
			switch acct.Class {
			case ClassRevenue:
				revenue += amt
			case ClassExpense:
				expenses += amt
			}
		}
		netAssets, netIncome := netPosition(tb)
		out = append(out, EntityContribution{
			EntityID:   entity.ID,
			EntityName: entity.Name,
			Method:     entity.ConsolidationMethod,
			Revenue:    round2(revenue * weight),
			Expenses:   round2(expenses * weight),
			NetIncome:  round2(netIncome * weight),
			NetAssets:  round2(netAssets * weight),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityName < out[j].EntityName })
	return out, nil
}

// PeriodComparison pairs two periods' headline totals with their deltas.
type PeriodComparison struct {
	BasePeriodID    string             `json:"basePeriodId"`
	ComparePeriodID string             `json:"comparePeriodId"`
	Base            map[string]float64 `json:"base"`
	Compare         map[string]float64 `json:"compare"`
	Delta           map[string]float64 `json:"delta"`
}

// GetPeriodComparison compares headline totals across two periods.
func (s *Service) GetPeriodComparison(ctx context.Context, tenantID, basePeriodID, comparePeriodID string) (PeriodComparison, error) {
	base, err := s.GetConsolidationSummary(ctx, tenantID, basePeriodID)
	if err != nil {
		return PeriodComparison{}, err
	}
	compare, err := s.GetConsolidationSummary(ctx, tenantID, comparePeriodID)
	if err != nil {
		return PeriodComparison{}, err
	}
	totals := func(sum ConsolidationSummary) map[string]float64 {
		return map[string]float64{
			"totalAssets":      sum.TotalAssets,
			"totalLiabilities": sum.TotalLiabilities,
			"totalEquity":      sum.TotalEquity,
			"netIncome":        sum.NetIncome,
		}
	}
	cmp := PeriodComparison{
		BasePeriodID:    basePeriodID,
		ComparePeriodID: comparePeriodID,
		Base:            totals(base),
		Compare:         totals(compare),
		Delta:           make(map[string]float64, 4),
	}
	for k := range cmp.Base {
		cmp.Delta[k] = round2(cmp.Compare[k] - cmp.Base[k])
	}
	return cmp, nil
}

// AuditTrailFilter narrows audit trail queries.
type AuditTrailFilter struct {
	Entity   string
	EntityID string
	Action   string
	Since    time.Time
}

// GetAuditTrail returns recorded audit events for the tenant, newest first.
func (s *Service) GetAuditTrail(ctx context.Context, tenantID string, filter AuditTrailFilter) ([]shared.AuditLog, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.List(ctx, tenantID, func(log shared.AuditLog) bool {
		if filter.Entity != "" && log.Entity != filter.Entity {
			return false
		}
		if filter.EntityID != "" && log.EntityID != filter.EntityID {
			return false
		}
		if filter.Action != "" && log.Action != filter.Action {
			return false
		}
		if !filter.Since.IsZero() && log.At.Before(filter.Since) {
			return false
		}
		return true
	})
}

// ConsolidationStatus reports how far a period has progressed through the
// consolidation pipeline.
type ConsolidationStatus struct {
	PeriodID           string       `json:"periodId"`
	Status             PeriodStatus `json:"status"`
	Locked             bool         `json:"locked"`
	BalancesSubmitted  int          `json:"balancesSubmitted"`
	UnresolvedLegs     int          `json:"unresolvedLegs"`
	EliminationsPosted int          `json:"eliminationsPosted"`
	ReadyForStatements bool         `json:"readyForStatements"`
}

// GetConsolidationStatus summarises pipeline readiness for a period.
func (s *Service) GetConsolidationStatus(ctx context.Context, tenantID, periodID string) (ConsolidationStatus, error) {
	period, err := s.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationStatus{}, err
	}
	balances, err := s.stores.Balances.ListTrialBalances(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationStatus{}, err
	}
	txns, err := s.stores.Transactions.ListTransactions(ctx, tenantID, periodID, TransactionFilter{})
	if err != nil {
		return ConsolidationStatus{}, err
	}
	entries, err := s.stores.Eliminations.ListEntries(ctx, tenantID, periodID, EntryFilter{Status: EntryPosted})
	if err != nil {
		return ConsolidationStatus{}, err
	}
	status := ConsolidationStatus{
		PeriodID:           periodID,
		Status:             period.Status,
		Locked:             period.Locked(),
		BalancesSubmitted:  len(balances),
		EliminationsPosted: len(entries),
	}
	for _, t := range txns {
		if t.Status == TxnPending || t.Status == TxnException {
			status.UnresolvedLegs++
		}
	}
	status.ReadyForStatements = status.BalancesSubmitted > 0 && status.UnresolvedLegs == 0
	return status, nil
}
