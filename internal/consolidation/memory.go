package consolidation

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStores is an in-process implementation of every store interface.
// All methods copy on read and write so callers always observe a consistent
// snapshot regardless of in-flight writers.
type MemoryStores struct {
	mu           sync.RWMutex
	entities     map[string]LegalEntity
	periods      map[string]ConsolidationPeriod
	rates        map[string]CurrencyRate
	balances     map[string]TrialBalance
	transactions map[string]IntercompanyTransaction
	entries      map[string]EliminationEntry
}

// NewMemoryStores returns empty in-memory stores.
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		entities:     make(map[string]LegalEntity),
		periods:      make(map[string]ConsolidationPeriod),
		rates:        make(map[string]CurrencyRate),
		balances:     make(map[string]TrialBalance),
		transactions: make(map[string]IntercompanyTransaction),
		entries:      make(map[string]EliminationEntry),
	}
}

// Stores bundles the memory implementation behind the repository interfaces.
func (m *MemoryStores) Stores() Stores {
	return Stores{
		Entities:     m,
		Periods:      m,
		Rates:        m,
		Balances:     m,
		Transactions: m,
		Eliminations: m,
	}
}

func (m *MemoryStores) InsertEntity(_ context.Context, entity LegalEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if e.TenantID == entity.TenantID && e.Code == entity.Code {
			return ErrDuplicateCode
		}
	}
	m.entities[entity.ID] = entity
	return nil
}

func (m *MemoryStores) GetEntity(_ context.Context, tenantID, id string) (LegalEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entity, ok := m.entities[id]
	if !ok || entity.TenantID != tenantID {
		return LegalEntity{}, ErrEntityNotFound
	}
	return entity, nil
}

func (m *MemoryStores) ListEntities(_ context.Context, tenantID string, filter EntityFilter) ([]LegalEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LegalEntity, 0)
	for _, e := range m.entities {
		if e.TenantID != tenantID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.ParentID != "" && e.ParentEntityID != filter.ParentID {
			continue
		}
		if filter.IsActive != nil && e.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return strings.Compare(out[i].Name, out[j].Name) < 0 })
	return out, nil
}

func (m *MemoryStores) UpdateEntity(_ context.Context, entity LegalEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.entities[entity.ID]
	if !ok || current.TenantID != entity.TenantID {
		return ErrEntityNotFound
	}
	m.entities[entity.ID] = entity
	return nil
}

func (m *MemoryStores) DeleteEntity(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entity, ok := m.entities[id]
	if !ok || entity.TenantID != tenantID {
		return ErrEntityNotFound
	}
	delete(m.entities, id)
	return nil
}

func (m *MemoryStores) CountChildren(_ context.Context, tenantID, parentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.entities {
		if e.TenantID == tenantID && e.ParentEntityID == parentID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStores) InsertPeriod(_ context.Context, period ConsolidationPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[period.ID] = period
	return nil
}

func (m *MemoryStores) GetPeriod(_ context.Context, tenantID, id string) (ConsolidationPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	period, ok := m.periods[id]
	if !ok || period.TenantID != tenantID {
		return ConsolidationPeriod{}, ErrPeriodNotFound
	}
	return period, nil
}

func (m *MemoryStores) ListPeriods(_ context.Context, tenantID string, filter PeriodFilter) ([]ConsolidationPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ConsolidationPeriod, 0)
	for _, p := range m.periods {
		if p.TenantID != tenantID {
			continue
		}
		if filter.Year != 0 && p.Year != filter.Year {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Period > out[j].Period
	})
	return out, nil
}

func (m *MemoryStores) UpdatePeriod(_ context.Context, period ConsolidationPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.periods[period.ID]
	if !ok || current.TenantID != period.TenantID {
		return ErrPeriodNotFound
	}
	m.periods[period.ID] = period
	return nil
}

func rateKey(rate CurrencyRate) string {
	return rate.TenantID + "|" + rate.PeriodID + "|" + rate.Currency + "|" + rate.BaseCurrency + "|" + rate.Date.UTC().Format("2006-01-02")
}

func (m *MemoryStores) UpsertRate(_ context.Context, rate CurrencyRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[rateKey(rate)] = rate
	return nil
}

func (m *MemoryStores) ListPeriodRates(_ context.Context, tenantID, periodID string) ([]CurrencyRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CurrencyRate, 0)
	for _, r := range m.rates {
		if r.TenantID == tenantID && r.PeriodID == periodID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (m *MemoryStores) ListRates(_ context.Context, tenantID string, filter ExchangeRateFilter) ([]CurrencyRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CurrencyRate, 0)
	for _, r := range m.rates {
		if r.TenantID != tenantID {
			continue
		}
		if filter.Currency != "" && r.Currency != filter.Currency {
			continue
		}
		if !filter.StartDate.IsZero() && r.Date.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && r.Date.After(filter.EndDate) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Currency != out[j].Currency {
			return out[i].Currency < out[j].Currency
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func balanceKey(tenantID, entityID, periodID string) string {
	return tenantID + "|" + entityID + "|" + periodID
}

func (m *MemoryStores) PutTrialBalance(_ context.Context, tb TrialBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tb.Accounts = append([]TrialBalanceAccount(nil), tb.Accounts...)
	m.balances[balanceKey(tb.TenantID, tb.EntityID, tb.PeriodID)] = tb
	return nil
}

func (m *MemoryStores) GetTrialBalance(_ context.Context, tenantID, entityID, periodID string) (TrialBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tb, ok := m.balances[balanceKey(tenantID, entityID, periodID)]
	if !ok {
		return TrialBalance{}, ErrBalanceNotFound
	}
	tb.Accounts = append([]TrialBalanceAccount(nil), tb.Accounts...)
	return tb, nil
}

func (m *MemoryStores) ListTrialBalances(_ context.Context, tenantID, periodID string) ([]TrialBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TrialBalance, 0)
	for _, tb := range m.balances {
		if tb.TenantID != tenantID || tb.PeriodID != periodID {
			continue
		}
		tb.Accounts = append([]TrialBalanceAccount(nil), tb.Accounts...)
		out = append(out, tb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (m *MemoryStores) InsertTransaction(_ context.Context, txn IntercompanyTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[txn.ID] = txn
	return nil
}

func (m *MemoryStores) GetTransaction(_ context.Context, tenantID, id string) (IntercompanyTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txn, ok := m.transactions[id]
	if !ok || txn.TenantID != tenantID {
		return IntercompanyTransaction{}, ErrTransactionNotFound
	}
	return txn, nil
}

func (m *MemoryStores) ListTransactions(_ context.Context, tenantID, periodID string, filter TransactionFilter) ([]IntercompanyTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]IntercompanyTransaction, 0)
	for _, t := range m.transactions {
		if t.TenantID != tenantID || t.PeriodID != periodID {
			continue
		}
		if filter.EntityID != "" && t.SourceEntityID != filter.EntityID && t.TargetEntityID != filter.EntityID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStores) UpdateTransaction(_ context.Context, txn IntercompanyTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.transactions[txn.ID]
	if !ok || current.TenantID != txn.TenantID {
		return ErrTransactionNotFound
	}
	m.transactions[txn.ID] = txn
	return nil
}

func (m *MemoryStores) InsertEntry(_ context.Context, entry EliminationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Lines = append([]JournalLine(nil), entry.Lines...)
	m.entries[entry.ID] = entry
	return nil
}

func (m *MemoryStores) GetEntry(_ context.Context, tenantID, id string) (EliminationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok || entry.TenantID != tenantID {
		return EliminationEntry{}, ErrEntryNotFound
	}
	entry.Lines = append([]JournalLine(nil), entry.Lines...)
	return entry, nil
}

func (m *MemoryStores) ListEntries(_ context.Context, tenantID, periodID string, filter EntryFilter) ([]EliminationEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EliminationEntry, 0)
	for _, e := range m.entries {
		if e.TenantID != tenantID || e.PeriodID != periodID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		e.Lines = append([]JournalLine(nil), e.Lines...)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStores) UpdateEntry(_ context.Context, entry EliminationEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.entries[entry.ID]
	if !ok || current.TenantID != entry.TenantID {
		return ErrEntryNotFound
	}
	entry.Lines = append([]JournalLine(nil), entry.Lines...)
	m.entries[entry.ID] = entry
	return nil
}

func (m *MemoryStores) DeleteEntry(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok || entry.TenantID != tenantID {
		return ErrEntryNotFound
	}
	delete(m.entries, id)
	return nil
}
