package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/consolidex/consolidex/internal/consolidation"
)

// InsertPeriod stores a consolidation period.
func (s *Store) InsertPeriod(ctx context.Context, p consolidation.ConsolidationPeriod) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
INSERT INTO consolidation_periods (
    id, tenant_id, name, fiscal_year, period_index, period_type,
    start_date, end_date, status, locked_at, locked_by, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13)`
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.TenantID, p.Name, p.Year, p.Period, string(p.Type),
		p.StartDate, p.EndDate, string(p.Status), p.LockedAt, p.LockedBy,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert period: %w", err)
	}
	return nil
}

const periodColumns = `
    id, tenant_id, name, fiscal_year, period_index, period_type,
    start_date, end_date, status, locked_at, COALESCE(locked_by, ''),
    created_at, updated_at`

func scanPeriod(row pgx.Row) (consolidation.ConsolidationPeriod, error) {
	var p consolidation.ConsolidationPeriod
	var ptype, status string
	var lockedAt *time.Time
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Year, &p.Period, &ptype,
		&p.StartDate, &p.EndDate, &status, &lockedAt, &p.LockedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return consolidation.ConsolidationPeriod{}, err
	}
	p.Type = consolidation.PeriodType(ptype)
	p.Status = consolidation.PeriodStatus(status)
	p.LockedAt = lockedAt
	return p, nil
}

// GetPeriod fetches one period scoped to the tenant.
func (s *Store) GetPeriod(ctx context.Context, tenantID, id string) (consolidation.ConsolidationPeriod, error) {
	if err := s.ready(); err != nil {
		return consolidation.ConsolidationPeriod{}, err
	}
	query := `SELECT` + periodColumns + ` FROM consolidation_periods WHERE tenant_id = $1 AND id = $2`
	p, err := scanPeriod(s.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return consolidation.ConsolidationPeriod{}, ErrNoRow
		}
		return consolidation.ConsolidationPeriod{}, fmt.Errorf("get period: %w", err)
	}
	return p, nil
}

// ListPeriods lists tenant periods, newest first.
func (s *Store) ListPeriods(ctx context.Context, tenantID string, filter consolidation.PeriodFilter) ([]consolidation.ConsolidationPeriod, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT` + periodColumns + ` FROM consolidation_periods WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Year != 0 {
		args = append(args, filter.Year)
		query += fmt.Sprintf(" AND fiscal_year = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY fiscal_year DESC, period_index DESC, id"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()
	out := make([]consolidation.ConsolidationPeriod, 0)
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePeriod rewrites the workflow columns.
func (s *Store) UpdatePeriod(ctx context.Context, p consolidation.ConsolidationPeriod) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
UPDATE consolidation_periods SET
    status = $3, locked_at = $4, locked_by = NULLIF($5,''), updated_at = $6
WHERE tenant_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, query, p.TenantID, p.ID, string(p.Status), p.LockedAt, p.LockedBy, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

// UpsertRate writes one currency rate row keyed by tenant, period, currency,
// base and date.
func (s *Store) UpsertRate(ctx context.Context, r consolidation.CurrencyRate) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
INSERT INTO currency_rates (
    tenant_id, period_id, currency, base_currency, rate_date, closing_rate, average_rate
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (tenant_id, period_id, currency, base_currency, rate_date)
DO UPDATE SET closing_rate = EXCLUDED.closing_rate, average_rate = EXCLUDED.average_rate`
	_, err := s.pool.Exec(ctx, query,
		r.TenantID, r.PeriodID, r.Currency, r.BaseCurrency, r.Date, r.ClosingRate, r.AverageRate)
	if err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	return nil
}

const rateColumns = `
    tenant_id, period_id, currency, base_currency, rate_date, closing_rate, average_rate`

func scanRate(row pgx.Row) (consolidation.CurrencyRate, error) {
	var r consolidation.CurrencyRate
	err := row.Scan(&r.TenantID, &r.PeriodID, &r.Currency, &r.BaseCurrency,
		&r.Date, &r.ClosingRate, &r.AverageRate)
	return r, err
}

// ListPeriodRates lists rates attached to one period.
func (s *Store) ListPeriodRates(ctx context.Context, tenantID, periodID string) ([]consolidation.CurrencyRate, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT` + rateColumns + ` FROM currency_rates WHERE tenant_id = $1 AND period_id = $2 ORDER BY currency`
	rows, err := s.pool.Query(ctx, query, tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("list period rates: %w", err)
	}
	defer rows.Close()
	out := make([]consolidation.CurrencyRate, 0)
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRates lists tenant rates matching the filter.
func (s *Store) ListRates(ctx context.Context, tenantID string, filter consolidation.ExchangeRateFilter) ([]consolidation.CurrencyRate, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT` + rateColumns + ` FROM currency_rates WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Currency != "" {
		args = append(args, filter.Currency)
		query += fmt.Sprintf(" AND currency = $%d", len(args))
	}
	if !filter.StartDate.IsZero() {
		args = append(args, filter.StartDate)
		query += fmt.Sprintf(" AND rate_date >= $%d", len(args))
	}
	if !filter.EndDate.IsZero() {
		args = append(args, filter.EndDate)
		query += fmt.Sprintf(" AND rate_date <= $%d", len(args))
	}
	query += " ORDER BY currency, rate_date"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()
	out := make([]consolidation.CurrencyRate, 0)
	for rows.Next() {
		r, err := scanRate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
