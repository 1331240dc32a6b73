// Package postgres persists the consolidation engine's aggregates. Row
// mapping is hand written against pgx; nested documents (trial balance
// accounts, elimination lines) live in jsonb columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/consolidex/consolidex/internal/consolidation"
)

// ErrNoRow indicates the requested row is missing. Callers translate it to
// their domain sentinel.
var ErrNoRow = errors.New("postgres: row not found")

const uniqueViolation = "23505"

// Store implements every consolidation repository against one pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs the store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Stores bundles the store for service wiring.
func (s *Store) Stores() consolidation.Stores {
	return consolidation.Stores{
		Entities:     s,
		Periods:      s,
		Rates:        s,
		Balances:     s,
		Transactions: s,
		Eliminations: s,
	}
}

func (s *Store) ready() error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("consolidation store not initialised")
	}
	return nil
}

// InsertEntity stores a legal entity. Duplicate (tenant, code) pairs map to
// the domain duplicate sentinel.
func (s *Store) InsertEntity(ctx context.Context, e consolidation.LegalEntity) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
INSERT INTO legal_entities (
    id, tenant_id, code, name, entity_type, parent_entity_id,
    ownership_percentage, consolidation_method, functional_currency,
    reporting_currency, translation_method, fiscal_year_end, country,
    tax_id, is_active, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := s.pool.Exec(ctx, query,
		e.ID, e.TenantID, e.Code, e.Name, string(e.Type), e.ParentEntityID,
		e.OwnershipPercentage, string(e.ConsolidationMethod), e.FunctionalCurrency,
		e.ReportingCurrency, string(e.TranslationMethod), e.FiscalYearEnd, e.Country,
		e.TaxID, e.IsActive, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return consolidation.ErrDuplicateCode
		}
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

const entityColumns = `
    id, tenant_id, code, name, entity_type, COALESCE(parent_entity_id, ''),
    ownership_percentage, consolidation_method, functional_currency,
    reporting_currency, translation_method, fiscal_year_end, country,
    tax_id, is_active, created_at, updated_at`

func scanEntity(row pgx.Row) (consolidation.LegalEntity, error) {
	var e consolidation.LegalEntity
	var etype, method, translation string
	err := row.Scan(&e.ID, &e.TenantID, &e.Code, &e.Name, &etype, &e.ParentEntityID,
		&e.OwnershipPercentage, &method, &e.FunctionalCurrency,
		&e.ReportingCurrency, &translation, &e.FiscalYearEnd, &e.Country,
		&e.TaxID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return consolidation.LegalEntity{}, err
	}
	e.Type = consolidation.EntityType(etype)
	e.ConsolidationMethod = consolidation.ConsolidationMethod(method)
	e.TranslationMethod = consolidation.TranslationMethod(translation)
	return e, nil
}

// GetEntity fetches one entity scoped to the tenant.
func (s *Store) GetEntity(ctx context.Context, tenantID, id string) (consolidation.LegalEntity, error) {
	if err := s.ready(); err != nil {
		return consolidation.LegalEntity{}, err
	}
	query := `SELECT` + entityColumns + ` FROM legal_entities WHERE tenant_id = $1 AND id = $2`
	e, err := scanEntity(s.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return consolidation.LegalEntity{}, ErrNoRow
		}
		return consolidation.LegalEntity{}, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

// ListEntities lists tenant entities matching the filter, ordered by name.
func (s *Store) ListEntities(ctx context.Context, tenantID string, filter consolidation.EntityFilter) ([]consolidation.LegalEntity, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT` + entityColumns + ` FROM legal_entities WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.ParentID != "" {
		args = append(args, filter.ParentID)
		query += fmt.Sprintf(" AND parent_entity_id = $%d", len(args))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	query += " ORDER BY name, id"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()
	out := make([]consolidation.LegalEntity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEntity rewrites the mutable entity columns.
func (s *Store) UpdateEntity(ctx context.Context, e consolidation.LegalEntity) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
UPDATE legal_entities SET
    name = $3, parent_entity_id = NULLIF($4,''), ownership_percentage = $5,
    consolidation_method = $6, translation_method = $7, is_active = $8,
    updated_at = $9
WHERE tenant_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, query, e.TenantID, e.ID, e.Name, e.ParentEntityID,
		e.OwnershipPercentage, string(e.ConsolidationMethod), string(e.TranslationMethod),
		e.IsActive, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

// DeleteEntity removes one entity row.
func (s *Store) DeleteEntity(ctx context.Context, tenantID, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM legal_entities WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

// CountChildren counts entities that reference parentID.
func (s *Store) CountChildren(ctx context.Context, tenantID, parentID string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM legal_entities WHERE tenant_id = $1 AND parent_entity_id = $2`,
		tenantID, parentID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}
	return n, nil
}

func marshalJSON(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return payload, nil
}
