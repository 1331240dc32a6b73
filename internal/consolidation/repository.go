package consolidation

import (
	"context"
	"time"
)

// EntityStore persists legal entities. Every query is tenant-scoped; a
// cross-tenant id lookup behaves exactly like a missing row.
type EntityStore interface {
	InsertEntity(ctx context.Context, entity LegalEntity) error
	GetEntity(ctx context.Context, tenantID, id string) (LegalEntity, error)
	ListEntities(ctx context.Context, tenantID string, filter EntityFilter) ([]LegalEntity, error)
	UpdateEntity(ctx context.Context, entity LegalEntity) error
	DeleteEntity(ctx context.Context, tenantID, id string) error
	CountChildren(ctx context.Context, tenantID, parentID string) (int, error)
}

// PeriodStore persists consolidation periods.
type PeriodStore interface {
	InsertPeriod(ctx context.Context, period ConsolidationPeriod) error
	GetPeriod(ctx context.Context, tenantID, id string) (ConsolidationPeriod, error)
	ListPeriods(ctx context.Context, tenantID string, filter PeriodFilter) ([]ConsolidationPeriod, error)
	UpdatePeriod(ctx context.Context, period ConsolidationPeriod) error
}

// RateStore persists externally supplied currency rates. Period-scoped rows
// and generic pair rows share the table; PeriodID is empty for the latter.
type RateStore interface {
	UpsertRate(ctx context.Context, rate CurrencyRate) error
	ListPeriodRates(ctx context.Context, tenantID, periodID string) ([]CurrencyRate, error)
	ListRates(ctx context.Context, tenantID string, filter ExchangeRateFilter) ([]CurrencyRate, error)
}

// TrialBalanceStore persists per-entity, per-period account balances.
// GetTrialBalance reports a missing extract with ErrBalanceNotFound.
type TrialBalanceStore interface {
	PutTrialBalance(ctx context.Context, tb TrialBalance) error
	GetTrialBalance(ctx context.Context, tenantID, entityID, periodID string) (TrialBalance, error)
	ListTrialBalances(ctx context.Context, tenantID, periodID string) ([]TrialBalance, error)
}

// TransactionStore persists intercompany transactions.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, txn IntercompanyTransaction) error
	GetTransaction(ctx context.Context, tenantID, id string) (IntercompanyTransaction, error)
	ListTransactions(ctx context.Context, tenantID, periodID string, filter TransactionFilter) ([]IntercompanyTransaction, error)
	UpdateTransaction(ctx context.Context, txn IntercompanyTransaction) error
}

// EliminationStore persists elimination journal entries.
type EliminationStore interface {
	InsertEntry(ctx context.Context, entry EliminationEntry) error
	GetEntry(ctx context.Context, tenantID, id string) (EliminationEntry, error)
	ListEntries(ctx context.Context, tenantID, periodID string, filter EntryFilter) ([]EliminationEntry, error)
	UpdateEntry(ctx context.Context, entry EliminationEntry) error
	DeleteEntry(ctx context.Context, tenantID, id string) error
}

// Stores bundles every repository the service depends on.
type Stores struct {
	Entities     EntityStore
	Periods      PeriodStore
	Rates        RateStore
	Balances     TrialBalanceStore
	Transactions TransactionStore
	Eliminations EliminationStore
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
