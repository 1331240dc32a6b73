package consolidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// periodRates indexes a period's currency rates for translation.
type periodRates map[string]CurrencyRate

func (s *Service) loadPeriodRates(ctx context.Context, tenantID, periodID string) (periodRates, error) {
	rows, err := s.stores.Rates.ListPeriodRates(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	rates := make(periodRates, len(rows))
	for _, r := range rows {
		rates[r.Currency] = r
	}
	return rates, nil
}

// rateFor resolves the closing and average rates for a functional currency.
// An entity already reporting in the group currency translates at 1.
func (r periodRates) rateFor(functional, reporting string) (closing, average float64, err error) {
	if functional == reporting {
		return 1, 1, nil
	}
	rate, ok := r[functional]
	if !ok || rate.ClosingRate <= 0 || rate.AverageRate <= 0 {
		return 0, 0, fmt.Errorf("%w: no usable rate for %s", ErrValidation, functional)
	}
	return rate.ClosingRate, rate.AverageRate, nil
}

// translationRate picks the rate for one account under the entity's
// translation method.
//
// CURRENT_RATE: everything at closing.
// TEMPORAL: assets and equity at historical (kept at carrying amount,
// rate 1), everything else at closing.
// AVERAGE_RATE: income statement at average, balance sheet at closing.
func translationRate(method TranslationMethod, class AccountClass, closing, average float64) float64 {
	switch method {
	case TranslateTemporal:
		if class == ClassAsset || class == ClassEquity {
			return 1
		}
		return closing
	case TranslateAverageRate:
		if class == ClassRevenue || class == ClassExpense {
			return average
		}
		return closing
	default: // CURRENT_RATE
		return closing
	}
}

// TranslateTrialBalance converts an entity's stored trial balance to the
// group reporting currency under its translation method. The cumulative
// translation adjustment is reported per account as the difference between
// the closing-rate value and the method value.
func (s *Service) TranslateTrialBalance(ctx context.Context, tenantID, entityID, periodID string) (TrialBalance, error) {
	entity, err := s.GetEntity(ctx, tenantID, entityID)
	if err != nil {
		return TrialBalance{}, err
	}
	tb, err := s.GetTrialBalance(ctx, tenantID, entityID, periodID)
	if err != nil {
		return TrialBalance{}, err
	}
	rates, err := s.loadPeriodRates(ctx, tenantID, periodID)
	if err != nil {
		return TrialBalance{}, err
	}
	translated, err := s.translate(entity, tb, rates)
	if err != nil {
		return TrialBalance{}, err
	}
	s.log().Debug("translated trial balance",
		slog.String("entity_id", entityID),
		slog.String("period_id", periodID),
		slog.String("method", string(entity.TranslationMethod)))
	return translated, nil
}

func (s *Service) translate(entity LegalEntity, tb TrialBalance, rates periodRates) (TrialBalance, error) {
	closing, average, err := rates.rateFor(entity.FunctionalCurrency, entity.ReportingCurrency)
	if err != nil {
		return TrialBalance{}, fmt.Errorf("entity %s: %w", entity.ID, err)
	}
	out := tb
	out.Accounts = make([]TrialBalanceAccount, len(tb.Accounts))
	var totalDebits, totalCredits float64
	for i, acct := range tb.Accounts {
		rate := translationRate(entity.TranslationMethod, acct.Class, closing, average)
		a := acct
		a.Debit = round2(acct.Debit * rate)
		a.Credit = round2(acct.Credit * rate)
		a.ExchangeRate = rate
		a.FunctionalAmount = naturalAmount(acct.Class, acct.Debit, acct.Credit)
		a.ReportingAmount = naturalAmount(acct.Class, a.Debit, a.Credit)
		a.TranslationAdjustment = round2(a.FunctionalAmount*closing - a.FunctionalAmount*rate)
		out.Accounts[i] = a
		totalDebits += a.Debit
		totalCredits += a.Credit
	}
	out.TotalDebits = round2(totalDebits)
	out.TotalCredits = round2(totalCredits)
	out.IsBalanced = equalAmounts(out.TotalDebits, out.TotalCredits)
	return out, nil
}

// translatedBalances loads and translates every submitted trial balance for
// the period, keyed by entity id. Entities without a submission are absent,
// never faked. Loads fan out per entity; four at a time keeps the pool happy.
func (s *Service) translatedBalances(ctx context.Context, tenantID, periodID string, entities []LegalEntity) (map[string]TrialBalance, error) {
	rates, err := s.loadPeriodRates(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	out := make(map[string]TrialBalance, len(entities))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, entity := range entities {
		if !entity.IsActive || entity.ConsolidationMethod == MethodNone {
			continue
		}
		entity := entity
		g.Go(func() error {
			tb, err := s.stores.Balances.GetTrialBalance(ctx, tenantID, entity.ID, periodID)
			if errors.Is(err, ErrBalanceNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			translated, err := s.translate(entity, tb, rates)
			if err != nil {
				return err
			}
			mu.Lock()
			out[entity.ID] = translated
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
