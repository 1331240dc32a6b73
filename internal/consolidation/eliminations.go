package consolidation

import (
	"context"
	"fmt"
	"log/slog"
)

// entryTotals sums both sides of an entry's lines.
func entryTotals(lines []JournalLine) (debits, credits float64) {
	for _, line := range lines {
		debits += line.Debit
		credits += line.Credit
	}
	return round2(debits), round2(credits)
}

// CreateEliminationEntry records a manual balanced adjustment in DRAFT.
func (s *Service) CreateEliminationEntry(ctx context.Context, tenantID, periodID string, input CreateEntryInput) (EliminationEntry, error) {
	if err := input.Validate(); err != nil {
		return EliminationEntry{}, err
	}
	if _, err := s.guardPeriodWritable(ctx, tenantID, periodID); err != nil {
		return EliminationEntry{}, err
	}
	debits, credits := entryTotals(input.Lines)
	if !equalAmounts(debits, credits) {
		return EliminationEntry{}, fmt.Errorf("%w: debits %.2f credits %.2f", ErrEntryUnbalanced, debits, credits)
	}
	entry := EliminationEntry{
		ID:            s.newID(),
		TenantID:      tenantID,
		PeriodID:      periodID,
		RuleID:        input.RuleID,
		TransactionID: input.TransactionID,
		Description:   input.Description,
		Lines:         input.Lines,
		Amount:        debits,
		Status:        EntryDraft,
		CreatedAt:     s.now(),
	}
	if err := s.stores.Eliminations.InsertEntry(ctx, entry); err != nil {
		return EliminationEntry{}, err
	}
	s.log().Info("created elimination entry",
		slog.String("entry_id", entry.ID),
		slog.String("period_id", periodID),
		slog.Float64("amount", entry.Amount))
	s.recordAudit(ctx, tenantID, "", "elimination_created", "elimination_entries", entry.ID, map[string]any{
		"period_id": periodID,
		"amount":    entry.Amount,
	})
	return entry, nil
}

// PostEliminationEntry finalises a draft entry. Posting is one-way; a
// posted entry can only be reversed with a new entry.
func (s *Service) PostEliminationEntry(ctx context.Context, tenantID, entryID, userID string) (EliminationEntry, error) {
	entry, err := s.GetEliminationEntry(ctx, tenantID, entryID)
	if err != nil {
		return EliminationEntry{}, err
	}
	if entry.Status == EntryPosted {
		return EliminationEntry{}, fmt.Errorf("%w: %s", ErrAlreadyPosted, entryID)
	}
	if _, err := s.guardPeriodWritable(ctx, tenantID, entry.PeriodID); err != nil {
		return EliminationEntry{}, err
	}
	now := s.now()
	entry.Status = EntryPosted
	entry.PostedAt = &now
	entry.PostedBy = userID
	if err := s.stores.Eliminations.UpdateEntry(ctx, entry); err != nil {
		return EliminationEntry{}, err
	}
	s.recordAudit(ctx, tenantID, userID, "elimination_posted", "elimination_entries", entryID, nil)
	return entry, nil
}

// DeleteEliminationEntry removes a draft entry. Posted entries are immutable.
func (s *Service) DeleteEliminationEntry(ctx context.Context, tenantID, entryID string) error {
	entry, err := s.GetEliminationEntry(ctx, tenantID, entryID)
	if err != nil {
		return err
	}
	if entry.Status == EntryPosted {
		return fmt.Errorf("%w: %s", ErrEntryPosted, entryID)
	}
	if _, err := s.guardPeriodWritable(ctx, tenantID, entry.PeriodID); err != nil {
		return err
	}
	if err := s.stores.Eliminations.DeleteEntry(ctx, tenantID, entryID); err != nil {
		return err
	}
	s.recordAudit(ctx, tenantID, "", "elimination_deleted", "elimination_entries", entryID, nil)
	return nil
}

// GetEliminationEntry returns one entry by id.
func (s *Service) GetEliminationEntry(ctx context.Context, tenantID, entryID string) (EliminationEntry, error) {
	entry, err := s.stores.Eliminations.GetEntry(ctx, tenantID, entryID)
	if err != nil {
		return EliminationEntry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	return entry, nil
}

// GetEliminationEntries lists a period's entries under a filter.
func (s *Service) GetEliminationEntries(ctx context.Context, tenantID, periodID string, filter EntryFilter) ([]EliminationEntry, error) {
	if _, err := s.GetPeriod(ctx, tenantID, periodID); err != nil {
		return nil, err
	}
	return s.stores.Eliminations.ListEntries(ctx, tenantID, periodID, filter)
}

// GenerateAutomaticEliminations creates one balanced DRAFT entry per
// MATCHED transaction pair and marks both legs ELIMINATED with a
// back-reference. Entries take effect once posted.
// Each pair is visited once (the leg with the smaller id drives); periods
// with no matched pairs yield an empty slice, not an error. Amounts are
// restated to reporting currency at the period closing rate; missing rates
// fail the run rather than eliminate at par.
func (s *Service) GenerateAutomaticEliminations(ctx context.Context, tenantID, periodID string) ([]EliminationEntry, error) {
	if _, err := s.guardPeriodWritable(ctx, tenantID, periodID); err != nil {
		return nil, err
	}
	unlock := s.locks.Acquire(tenantID, periodID)
	defer unlock()
	return s.generateEliminationsLocked(ctx, tenantID, periodID)
}

func (s *Service) generateEliminationsLocked(ctx context.Context, tenantID, periodID string) ([]EliminationEntry, error) {
	matched, err := s.stores.Transactions.ListTransactions(ctx, tenantID, periodID, TransactionFilter{Status: TxnMatched})
	if err != nil {
		return nil, err
	}
	rates, err := s.loadPeriodRates(ctx, tenantID, periodID)
	if err != nil {
		return nil, err
	}
	reporting, err := s.reportingCurrency(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]IntercompanyTransaction, len(matched))
	for _, txn := range matched {
		byID[txn.ID] = txn
	}

	entries := make([]EliminationEntry, 0, len(matched)/2)
	for _, txn := range matched {
		partner, ok := byID[txn.MatchedTransactionID]
		if !ok || txn.ID > partner.ID {
			continue
		}
		entry, err := s.buildEliminationEntry(tenantID, periodID, txn, partner, rates, reporting)
		if err != nil {
			return nil, err
		}
		if err := s.stores.Eliminations.InsertEntry(ctx, entry); err != nil {
			return nil, err
		}
		txn.Status = TxnEliminated
		txn.EliminationEntryID = entry.ID
		partner.Status = TxnEliminated
		partner.EliminationEntryID = entry.ID
		if err := s.stores.Transactions.UpdateTransaction(ctx, txn); err != nil {
			return nil, err
		}
		if err := s.stores.Transactions.UpdateTransaction(ctx, partner); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	s.log().Info("generated automatic eliminations",
		slog.String("period_id", periodID),
		slog.Int("entries", len(entries)))
	s.recordAudit(ctx, tenantID, "", "eliminations_generated", "consolidation_periods", periodID, map[string]any{
		"entries": len(entries),
	})
	return entries, nil
}

// buildEliminationEntry orients the two legs by transaction type: the
// receivable (or revenue) side is credited away on its own books and the
// payable (or expense) side debited away on the partner's.
func (s *Service) buildEliminationEntry(tenantID, periodID string, a, b IntercompanyTransaction, rates periodRates, reporting string) (EliminationEntry, error) {
	// Normalise so the first leg is the receivable/revenue side.
	if a.Type == TypeIntercompanyPayable || a.Type == TypeIntercompanyExpense {
		a, b = b, a
	}

	rate := 1.0
	if a.Currency != "" && a.Currency != reporting {
		r, ok := rates[a.Currency]
		if !ok || r.ClosingRate <= 0 {
			return EliminationEntry{}, fmt.Errorf("%w: no closing rate for %s", ErrValidation, a.Currency)
		}
		rate = r.ClosingRate
	}
	amount := round2(a.Amount)
	reportingAmount := round2(amount * rate)

	var ruleID string
	switch a.Type {
	case TypeIntercompanyReceivable:
		ruleID = "rule_ic_arap"
	case TypeIntercompanyRevenue:
		ruleID = "rule_ic_revexp"
	}

	lines := []JournalLine{
		{
			EntityID:        a.SourceEntityID,
			AccountCode:     a.AccountCode,
			Description:     "Eliminate " + string(a.Type),
			Currency:        a.Currency,
			ExchangeRate:    rate,
			ReportingAmount: reportingAmount,
		},
		{
			EntityID:        b.SourceEntityID,
			AccountCode:     b.AccountCode,
			Description:     "Eliminate " + string(b.Type),
			Currency:        b.Currency,
			ExchangeRate:    rate,
			ReportingAmount: reportingAmount,
		},
	}
	if a.Type == TypeIntercompanyReceivable {
		// Credit the receivable away, debit the payable away.
		lines[0].Credit = amount
		lines[1].Debit = amount
	} else {
		// Debit the revenue away, credit the expense away.
		lines[0].Debit = amount
		lines[1].Credit = amount
	}

	return EliminationEntry{
		ID:            s.newID(),
		TenantID:      tenantID,
		PeriodID:      periodID,
		RuleID:        ruleID,
		TransactionID: a.ID,
		Description:   fmt.Sprintf("Auto-elimination: %s %.2f %s", a.Type, amount, a.Currency),
		Lines:         lines,
		Amount:        amount,
		Status:        EntryDraft,
		CreatedAt:     s.now(),
	}, nil
}

// postDraftEliminationsLocked posts every draft entry in the period. Only
// posted entries feed the consolidated statements, so an orchestrated run
// posts right after generation; entries generated standalone sit in DRAFT
// until posted through PostEliminationEntry. Already-posted entries are
// left alone, which keeps reruns cheap.
func (s *Service) postDraftEliminationsLocked(ctx context.Context, tenantID, periodID, userID string) (int, error) {
	drafts, err := s.stores.Eliminations.ListEntries(ctx, tenantID, periodID, EntryFilter{Status: EntryDraft})
	if err != nil {
		return 0, err
	}
	for i, entry := range drafts {
		now := s.now()
		entry.Status = EntryPosted
		entry.PostedAt = &now
		entry.PostedBy = userID
		if err := s.stores.Eliminations.UpdateEntry(ctx, entry); err != nil {
			return i, err
		}
		s.recordAudit(ctx, tenantID, userID, "elimination_posted", "elimination_entries", entry.ID, nil)
	}
	return len(drafts), nil
}
