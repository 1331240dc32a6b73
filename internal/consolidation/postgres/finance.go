package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/consolidex/consolidex/internal/consolidation"
)

// PutTrialBalance replaces the extract for one entity and period. Accounts
// travel as one jsonb document; they are always read back whole.
func (s *Store) PutTrialBalance(ctx context.Context, tb consolidation.TrialBalance) error {
	if err := s.ready(); err != nil {
		return err
	}
	accounts, err := marshalJSON(tb.Accounts)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO trial_balances (
    tenant_id, entity_id, entity_name, period_id, accounts,
    total_debits, total_credits, is_balanced, submitted_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (tenant_id, entity_id, period_id)
DO UPDATE SET entity_name = EXCLUDED.entity_name, accounts = EXCLUDED.accounts,
    total_debits = EXCLUDED.total_debits, total_credits = EXCLUDED.total_credits,
    is_balanced = EXCLUDED.is_balanced, submitted_at = EXCLUDED.submitted_at`
	_, err = s.pool.Exec(ctx, query,
		tb.TenantID, tb.EntityID, tb.EntityName, tb.PeriodID, accounts,
		tb.TotalDebits, tb.TotalCredits, tb.IsBalanced, tb.SubmittedAt)
	if err != nil {
		return fmt.Errorf("put trial balance: %w", err)
	}
	return nil
}

const balanceColumns = `
    tenant_id, entity_id, entity_name, period_id, accounts,
    total_debits, total_credits, is_balanced, submitted_at`

func scanBalance(row pgx.Row) (consolidation.TrialBalance, error) {
	var tb consolidation.TrialBalance
	var accounts []byte
	err := row.Scan(&tb.TenantID, &tb.EntityID, &tb.EntityName, &tb.PeriodID, &accounts,
		&tb.TotalDebits, &tb.TotalCredits, &tb.IsBalanced, &tb.SubmittedAt)
	if err != nil {
		return consolidation.TrialBalance{}, err
	}
	if err := json.Unmarshal(accounts, &tb.Accounts); err != nil {
		return consolidation.TrialBalance{}, fmt.Errorf("decode accounts: %w", err)
	}
	return tb, nil
}

// GetTrialBalance fetches one extract.
func (s *Store) GetTrialBalance(ctx context.Context, tenantID, entityID, periodID string) (consolidation.TrialBalance, error) {
	if err := s.ready(); err != nil {
		return consolidation.TrialBalance{}, err
	}
	query := `SELECT` + balanceColumns + ` FROM trial_balances WHERE tenant_id = $1 AND entity_id = $2 AND period_id = $3`
	tb, err := scanBalance(s.pool.QueryRow(ctx, query, tenantID, entityID, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Callers skip entities without a submission on this sentinel.
			return consolidation.TrialBalance{}, consolidation.ErrBalanceNotFound
		}
		return consolidation.TrialBalance{}, fmt.Errorf("get trial balance: %w", err)
	}
	return tb, nil
}

// ListTrialBalances lists a period's extracts ordered by entity name.
func (s *Store) ListTrialBalances(ctx context.Context, tenantID, periodID string) ([]consolidation.TrialBalance, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT` + balanceColumns + ` FROM trial_balances WHERE tenant_id = $1 AND period_id = $2 ORDER BY entity_name, entity_id`
	rows, err := s.pool.Query(ctx, query, tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("list trial balances: %w", err)
	}
	defer rows.Close()
	out := make([]consolidation.TrialBalance, 0)
	for rows.Next() {
		tb, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial balance: %w", err)
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

// InsertTransaction stores one intercompany leg.
func (s *Store) InsertTransaction(ctx context.Context, t consolidation.IntercompanyTransaction) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
INSERT INTO intercompany_transactions (
    id, tenant_id, period_id, source_entity_id, target_entity_id,
    transaction_type, account_code, description, amount, currency,
    status, matched_transaction_id, elimination_entry_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),NULLIF($13,''),$14)`
	_, err := s.pool.Exec(ctx, query,
		t.ID, t.TenantID, t.PeriodID, t.SourceEntityID, t.TargetEntityID,
		string(t.Type), t.AccountCode, t.Description, t.Amount, t.Currency,
		string(t.Status), t.MatchedTransactionID, t.EliminationEntryID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
    id, tenant_id, period_id, source_entity_id, target_entity_id,
    transaction_type, account_code, description, amount, currency,
    status, COALESCE(matched_transaction_id, ''), COALESCE(elimination_entry_id, ''), created_at`

func scanTransaction(row pgx.Row) (consolidation.IntercompanyTransaction, error) {
	var t consolidation.IntercompanyTransaction
	var ttype, status string
	err := row.Scan(&t.ID, &t.TenantID, &t.PeriodID, &t.SourceEntityID, &t.TargetEntityID,
		&ttype, &t.AccountCode, &t.Description, &t.Amount, &t.Currency,
		&status, &t.MatchedTransactionID, &t.EliminationEntryID, &t.CreatedAt)
	if err != nil {
		return consolidation.IntercompanyTransaction{}, err
	}
	t.Type = consolidation.TransactionType(ttype)
	t.Status = consolidation.TransactionStatus(status)
	return t, nil
}

// GetTransaction fetches one leg.
func (s *Store) GetTransaction(ctx context.Context, tenantID, id string) (consolidation.IntercompanyTransaction, error) {
	if err := s.ready(); err != nil {
		return consolidation.IntercompanyTransaction{}, err
	}
	query := `SELECT` + transactionColumns + ` FROM intercompany_transactions WHERE tenant_id = $1 AND id = $2`
	t, err := scanTransaction(s.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return consolidation.IntercompanyTransaction{}, ErrNoRow
		}
		return consolidation.IntercompanyTransaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions lists a period's legs matching the filter, oldest first
// so matching sweeps are deterministic.
func (s *Store) ListTransactions(ctx context.Context, tenantID, periodID string, filter consolidation.TransactionFilter) ([]consolidation.IntercompanyTransaction, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT` + transactionColumns + ` FROM intercompany_transactions WHERE tenant_id = $1 AND period_id = $2`
	args := []any{tenantID, periodID}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(" AND (source_entity_id = $%d OR target_entity_id = $%d)", len(args), len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(" AND transaction_type = $%d", len(args))
	}
	query += " ORDER BY created_at, id"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	out := make([]consolidation.IntercompanyTransaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransaction rewrites the matching lifecycle columns.
func (s *Store) UpdateTransaction(ctx context.Context, t consolidation.IntercompanyTransaction) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
UPDATE intercompany_transactions SET
    status = $3, matched_transaction_id = NULLIF($4,''), elimination_entry_id = NULLIF($5,'')
WHERE tenant_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, query, t.TenantID, t.ID, string(t.Status), t.MatchedTransactionID, t.EliminationEntryID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

// InsertEntry stores an elimination entry with its lines as jsonb.
func (s *Store) InsertEntry(ctx context.Context, e consolidation.EliminationEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	lines, err := marshalJSON(e.Lines)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO elimination_entries (
    id, tenant_id, period_id, rule_id, transaction_id, description,
    lines, amount, status, created_at, posted_at, posted_by
) VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$9,$10,$11,NULLIF($12,''))`
	_, err = s.pool.Exec(ctx, query,
		e.ID, e.TenantID, e.PeriodID, e.RuleID, e.TransactionID, e.Description,
		lines, e.Amount, string(e.Status), e.CreatedAt, e.PostedAt, e.PostedBy)
	if err != nil {
		return fmt.Errorf("insert elimination entry: %w", err)
	}
	return nil
}

const entryColumns = `
    id, tenant_id, period_id, COALESCE(rule_id, ''), COALESCE(transaction_id, ''),
    description, lines, amount, status, created_at, posted_at, COALESCE(posted_by, '')`

func scanEntry(row pgx.Row) (consolidation.EliminationEntry, error) {
	var e consolidation.EliminationEntry
	var lines []byte
	var status string
	var postedAt *time.Time
	err := row.Scan(&e.ID, &e.TenantID, &e.PeriodID, &e.RuleID, &e.TransactionID,
		&e.Description, &lines, &e.Amount, &status, &e.CreatedAt, &postedAt, &e.PostedBy)
	if err != nil {
		return consolidation.EliminationEntry{}, err
	}
	if err := json.Unmarshal(lines, &e.Lines); err != nil {
		return consolidation.EliminationEntry{}, fmt.Errorf("decode lines: %w", err)
	}
	e.Status = consolidation.EntryStatus(status)
	e.PostedAt = postedAt
	return e, nil
}

// GetEntry fetches one elimination entry.
func (s *Store) GetEntry(ctx context.Context, tenantID, id string) (consolidation.EliminationEntry, error) {
	if err := s.ready(); err != nil {
		return consolidation.EliminationEntry{}, err
	}
	query := `SELECT` + entryColumns + ` FROM elimination_entries WHERE tenant_id = $1 AND id = $2`
	e, err := scanEntry(s.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return consolidation.EliminationEntry{}, ErrNoRow
		}
		return consolidation.EliminationEntry{}, fmt.Errorf("get elimination entry: %w", err)
	}
	return e, nil
}

// ListEntries lists a period's elimination entries.
func (s *Store) ListEntries(ctx context.Context, tenantID, periodID string, filter consolidation.EntryFilter) ([]consolidation.EliminationEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	query := `SELECT` + entryColumns + ` FROM elimination_entries WHERE tenant_id = $1 AND period_id = $2`
	args := []any{tenantID, periodID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at, id"
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list elimination entries: %w", err)
	}
	defer rows.Close()
	out := make([]consolidation.EliminationEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan elimination entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEntry rewrites the posting columns.
func (s *Store) UpdateEntry(ctx context.Context, e consolidation.EliminationEntry) error {
	if err := s.ready(); err != nil {
		return err
	}
	const query = `
UPDATE elimination_entries SET
    status = $3, posted_at = $4, posted_by = NULLIF($5,'')
WHERE tenant_id = $1 AND id = $2`
	tag, err := s.pool.Exec(ctx, query, e.TenantID, e.ID, string(e.Status), e.PostedAt, e.PostedBy)
	if err != nil {
		return fmt.Errorf("update elimination entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

// DeleteEntry removes one elimination entry row.
func (s *Store) DeleteEntry(ctx context.Context, tenantID, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM elimination_entries WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete elimination entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}
