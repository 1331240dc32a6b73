package consolidation

import (
	"context"
	"fmt"
	"log/slog"
)

// MatchResult summarises a matching sweep over a period.
type MatchResult struct {
	Matched    int `json:"matched"`
	Exceptions int `json:"exceptions"`
}

// RecordIntercompanyTransaction registers one leg and immediately resolves
// it against outstanding PENDING counterparts. A leg with a PENDING
// complement (mirrored entity pair, complementary type, same amount and
// currency) becomes MATCHED together with it; a leg with none is flagged
// EXCEPTION on the spot so reconciliation surfaces it. EXCEPTION legs stay
// put until someone clears them; they are never re-matched automatically.
func (s *Service) RecordIntercompanyTransaction(ctx context.Context, tenantID string, input RecordTransactionInput) (IntercompanyTransaction, error) {
	if err := input.Validate(); err != nil {
		return IntercompanyTransaction{}, err
	}
	if _, err := s.guardPeriodWritable(ctx, tenantID, input.PeriodID); err != nil {
		return IntercompanyTransaction{}, err
	}
	if _, err := s.GetEntity(ctx, tenantID, input.SourceEntityID); err != nil {
		return IntercompanyTransaction{}, err
	}
	if _, err := s.GetEntity(ctx, tenantID, input.TargetEntityID); err != nil {
		return IntercompanyTransaction{}, err
	}

	unlock := s.locks.Acquire(tenantID, input.PeriodID)
	defer unlock()

	txn := IntercompanyTransaction{
		ID:             s.newID(),
		TenantID:       tenantID,
		PeriodID:       input.PeriodID,
		SourceEntityID: input.SourceEntityID,
		TargetEntityID: input.TargetEntityID,
		Type:           input.Type,
		AccountCode:    input.AccountCode,
		Description:    input.Description,
		Amount:         round2(input.Amount),
		Currency:       input.Currency,
		Status:         TxnException,
		CreatedAt:      s.now(),
	}

	counterpart, found, err := s.findCounterpart(ctx, tenantID, txn)
	if err != nil {
		return IntercompanyTransaction{}, err
	}
	if found {
		txn.Status = TxnMatched
		txn.MatchedTransactionID = counterpart.ID
		counterpart.Status = TxnMatched
		counterpart.MatchedTransactionID = txn.ID
		if err := s.stores.Transactions.UpdateTransaction(ctx, counterpart); err != nil {
			return IntercompanyTransaction{}, err
		}
	}
	if err := s.stores.Transactions.InsertTransaction(ctx, txn); err != nil {
		return IntercompanyTransaction{}, err
	}
	s.log().Info("recorded intercompany transaction",
		slog.String("transaction_id", txn.ID),
		slog.String("type", string(txn.Type)),
		slog.String("status", string(txn.Status)))
	s.recordAudit(ctx, tenantID, "", "intercompany_recorded", "intercompany_transactions", txn.ID, map[string]any{
		"period_id": txn.PeriodID,
		"status":    string(txn.Status),
		"amount":    txn.Amount,
	})
	return txn, nil
}

// findCounterpart looks for a PENDING complement of txn: reversed entity
// pair, complementary type, equal amount and currency.
func (s *Service) findCounterpart(ctx context.Context, tenantID string, txn IntercompanyTransaction) (IntercompanyTransaction, bool, error) {
	want, ok := counterpartType[txn.Type]
	if !ok {
		return IntercompanyTransaction{}, false, nil
	}
	candidates, err := s.stores.Transactions.ListTransactions(ctx, tenantID, txn.PeriodID, TransactionFilter{
		Type: want,
	})
	if err != nil {
		return IntercompanyTransaction{}, false, err
	}
	for _, c := range candidates {
		if c.Status != TxnPending {
			continue
		}
		if c.SourceEntityID == txn.TargetEntityID &&
			c.TargetEntityID == txn.SourceEntityID &&
			c.Currency == txn.Currency &&
			equalAmounts(c.Amount, txn.Amount) {
			return c, true, nil
		}
	}
	return IntercompanyTransaction{}, false, nil
}

// MatchIntercompanyTransactions sweeps the period's PENDING legs and pairs
// complements. Pending legs left without a partner are demoted to
// EXCEPTION and counted. The sweep is idempotent, and it only looks at
// PENDING legs: MATCHED, ELIMINATED and prior EXCEPTION legs are never
// touched.
func (s *Service) MatchIntercompanyTransactions(ctx context.Context, tenantID, periodID string) (MatchResult, error) {
	if _, err := s.guardPeriodWritable(ctx, tenantID, periodID); err != nil {
		return MatchResult{}, err
	}
	unlock := s.locks.Acquire(tenantID, periodID)
	defer unlock()
	return s.matchPeriodLocked(ctx, tenantID, periodID)
}

func (s *Service) matchPeriodLocked(ctx context.Context, tenantID, periodID string) (MatchResult, error) {
	pending, err := s.stores.Transactions.ListTransactions(ctx, tenantID, periodID, TransactionFilter{Status: TxnPending})
	if err != nil {
		return MatchResult{}, err
	}

	var result MatchResult
	paired := make(map[string]bool, len(pending))
	for i := range pending {
		a := pending[i]
		if paired[a.ID] {
			continue
		}
		matched := false
		for j := i + 1; j < len(pending); j++ {
			b := pending[j]
			if paired[b.ID] {
				continue
			}
			if counterpartType[a.Type] != b.Type {
				continue
			}
			if a.SourceEntityID != b.TargetEntityID || a.TargetEntityID != b.SourceEntityID {
				continue
			}
			if a.Currency != b.Currency || !equalAmounts(a.Amount, b.Amount) {
				continue
			}
			a.Status = TxnMatched
			a.MatchedTransactionID = b.ID
			b.Status = TxnMatched
			b.MatchedTransactionID = a.ID
			if err := s.stores.Transactions.UpdateTransaction(ctx, a); err != nil {
				return result, err
			}
			if err := s.stores.Transactions.UpdateTransaction(ctx, b); err != nil {
				return result, err
			}
			paired[a.ID] = true
			paired[b.ID] = true
			result.Matched += 2
			matched = true
			break
		}
		if !matched {
			a.Status = TxnException
			if err := s.stores.Transactions.UpdateTransaction(ctx, a); err != nil {
				return result, err
			}
			result.Exceptions++
		}
	}

	s.log().Info("matched intercompany transactions",
		slog.String("period_id", periodID),
		slog.Int("matched", result.Matched),
		slog.Int("exceptions", result.Exceptions))
	s.recordAudit(ctx, tenantID, "", "intercompany_matched", "consolidation_periods", periodID, map[string]any{
		"matched":    result.Matched,
		"exceptions": result.Exceptions,
	})
	return result, nil
}

// GetIntercompanyTransactions lists a period's transactions under a filter.
func (s *Service) GetIntercompanyTransactions(ctx context.Context, tenantID, periodID string, filter TransactionFilter) ([]IntercompanyTransaction, error) {
	if _, err := s.GetPeriod(ctx, tenantID, periodID); err != nil {
		return nil, err
	}
	return s.stores.Transactions.ListTransactions(ctx, tenantID, periodID, filter)
}

// GetIntercompanyTransaction returns one transaction by id.
func (s *Service) GetIntercompanyTransaction(ctx context.Context, tenantID, id string) (IntercompanyTransaction, error) {
	txn, err := s.stores.Transactions.GetTransaction(ctx, tenantID, id)
	if err != nil {
		return IntercompanyTransaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	return txn, nil
}
