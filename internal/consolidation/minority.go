package consolidation

import (
	"context"
	"log/slog"
	"sort"
)

// MinorityInterestRow is one entity's non-controlling interest share.
type MinorityInterestRow struct {
	EntityID            string  `json:"entityId"`
	EntityName          string  `json:"entityName"`
	OwnershipPercentage float64 `json:"ownershipPercentage"`
	MinorityPercentage  float64 `json:"minorityPercentage"`
	NetAssets           float64 `json:"netAssets"`
	NetIncome           float64 `json:"netIncome"`
	MinorityInterest    float64 `json:"minorityInterest"`
	MinorityIncome      float64 `json:"minorityIncome"`
}

// MinorityInterestResult aggregates non-controlling interests for a period.
type MinorityInterestResult struct {
	PeriodID              string                `json:"periodId"`
	Rows                  []MinorityInterestRow `json:"rows"`
	TotalMinorityInterest float64               `json:"totalMinorityInterest"`
	TotalMinorityIncome   float64               `json:"totalMinorityIncome"`
}

// netPosition sums a translated trial balance into net assets and net income
// in reporting currency.
func netPosition(tb TrialBalance) (netAssets, netIncome float64) {
	for _, acct := range tb.Accounts {
		amt := naturalAmount(acct.Class, acct.Debit, acct.Credit)
		switch acct.Class {
		case ClassAsset:
			netAssets += amt
		case ClassLiability:
			netAssets -= amt
		case ClassRevenue:
			netIncome += amt
		case ClassExpense:
			netIncome -= amt
		}
	}
	return round2(netAssets), round2(netIncome)
}

// CalculateMinorityInterest computes the outside shareholders' slice of each
// partially owned entity folded into the group. Fully consolidated entities
// contribute their whole translated net assets; proportionally consolidated
// entities contribute only the owned share, so the minority slice applies to
// that reduced base. Wholly owned entities and equity-method holdings carry
// no minority interest.
func (s *Service) CalculateMinorityInterest(ctx context.Context, tenantID, periodID string) (MinorityInterestResult, error) {
	if _, err := s.GetPeriod(ctx, tenantID, periodID); err != nil {
		return MinorityInterestResult{}, err
	}
	entities, err := s.stores.Entities.ListEntities(ctx, tenantID, EntityFilter{})
	if err != nil {
		return MinorityInterestResult{}, err
	}
	balances, err := s.translatedBalances(ctx, tenantID, periodID, entities)
	if err != nil {
		return MinorityInterestResult{}, err
	}

	result := MinorityInterestResult{PeriodID: periodID}
	for _, entity := range entities {
		if entity.ParentEntityID == "" || entity.OwnershipPercentage >= 100 {
			continue
		}
		if entity.ConsolidationMethod != MethodFull && entity.ConsolidationMethod != MethodProportional {
			continue
		}
		tb, ok := balances[entity.ID]
		if !ok {
			continue
		}
		netAssets, netIncome := netPosition(tb)
		if entity.ConsolidationMethod == MethodProportional {
			share := entity.OwnershipPercentage / 100
			netAssets = round2(netAssets * share)
			netIncome = round2(netIncome * share)
		}
		minorityPct := 100 - entity.OwnershipPercentage
		row := MinorityInterestRow{
			EntityID:            entity.ID,
			EntityName:          entity.Name,
			OwnershipPercentage: entity.OwnershipPercentage,
			MinorityPercentage:  minorityPct,
			NetAssets:           netAssets,
			NetIncome:           netIncome,
			MinorityInterest:    round2(netAssets * minorityPct / 100),
			MinorityIncome:      round2(netIncome * minorityPct / 100),
		}
		result.Rows = append(result.Rows, row)
		result.TotalMinorityInterest += row.MinorityInterest
		result.TotalMinorityIncome += row.MinorityIncome
	}
	sort.Slice(result.Rows, func(i, j int) bool { return result.Rows[i].EntityName < result.Rows[j].EntityName })
	result.TotalMinorityInterest = round2(result.TotalMinorityInterest)
	result.TotalMinorityIncome = round2(result.TotalMinorityIncome)

	s.log().Info("calculated minority interest",
		slog.String("period_id", periodID),
		slog.Int("entities", len(result.Rows)),
		slog.Float64("total", result.TotalMinorityInterest))
	return result, nil
}
