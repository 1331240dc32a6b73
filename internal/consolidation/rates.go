package consolidation

import (
	"context"
	"fmt"
	"log/slog"
)

// SetCurrencyRates stores closing and average rates for a set of currencies
// on a period. A second upload for the same currency and date replaces the
// earlier row. Rows without an explicit date default to the period end.
func (s *Service) SetCurrencyRates(ctx context.Context, tenantID, periodID string, inputs []RateInput) ([]CurrencyRate, error) {
	period, err := s.guardPeriodWritable(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	out := make([]CurrencyRate, 0, len(inputs))
	for _, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, err
		}
		date := in.Date
		if date.IsZero() {
			date = period.EndDate
		}
		rate := CurrencyRate{
			TenantID:    tenantID,
			PeriodID:    periodID,
			Currency:    in.Currency,
			Date:        date,
			ClosingRate: in.ClosingRate,
			AverageRate: in.AverageRate,
		}
		if err := s.stores.Rates.UpsertRate(ctx, rate); err != nil {
			return nil, err
		}
		out = append(out, rate)
	}
	s.log().Info("set currency rates",
		slog.String("period_id", periodID),
		slog.Int("count", len(out)))
	s.recordAudit(ctx, tenantID, "", "currency_rates_set", "currency_rates", periodID, map[string]any{
		"count": len(out),
	})
	return out, nil
}

// GetCurrencyRates lists the rates registered on a period.
func (s *Service) GetCurrencyRates(ctx context.Context, tenantID, periodID string) ([]CurrencyRate, error) {
	if _, err := s.GetPeriod(ctx, tenantID, periodID); err != nil {
		return nil, err
	}
	return s.stores.Rates.ListPeriodRates(ctx, tenantID, periodID)
}

// SetExchangeRate records a generic pair rate outside any period. A SPOT
// rate lands on the closing leg, an AVERAGE rate on the average leg; the
// other leg survives when the pair already has a row for that date.
func (s *Service) SetExchangeRate(ctx context.Context, tenantID string, input ExchangeRateInput) (CurrencyRate, error) {
	if err := input.Validate(); err != nil {
		return CurrencyRate{}, err
	}
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	rate := CurrencyRate{
		TenantID:     tenantID,
		Currency:     input.FromCurrency,
		BaseCurrency: input.ToCurrency,
		Date:         date,
	}
	existing, err := s.stores.Rates.ListRates(ctx, tenantID, ExchangeRateFilter{
		Currency:  input.FromCurrency,
		StartDate: date,
		EndDate:   date,
	})
	if err != nil {
		return CurrencyRate{}, err
	}
	for _, r := range existing {
		if r.PeriodID == "" && r.BaseCurrency == input.ToCurrency {
			rate = r
			break
		}
	}
	switch input.RateType {
	case RateSpot:
		rate.ClosingRate = input.Rate
	case RateAverage:
		rate.AverageRate = input.Rate
	default:
		return CurrencyRate{}, fmt.Errorf("%w: unknown rate type %q", ErrValidation, input.RateType)
	}
	if err := s.stores.Rates.UpsertRate(ctx, rate); err != nil {
		return CurrencyRate{}, err
	}
	s.recordAudit(ctx, tenantID, "", "exchange_rate_set", "currency_rates", input.FromCurrency+"/"+input.ToCurrency, map[string]any{
		"type": string(input.RateType),
		"rate": input.Rate,
	})
	return rate, nil
}

// GetExchangeRates lists generic pair rates matching the filter.
func (s *Service) GetExchangeRates(ctx context.Context, tenantID string, filter ExchangeRateFilter) ([]CurrencyRate, error) {
	rates, err := s.stores.Rates.ListRates(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]CurrencyRate, 0, len(rates))
	for _, r := range rates {
		if r.PeriodID == "" {
			out = append(out, r)
		}
	}
	return out, nil
}
