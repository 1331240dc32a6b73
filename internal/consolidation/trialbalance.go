package consolidation

import (
	"context"
	"fmt"
	"log/slog"
)

// SubmitTrialBalance stores an entity's account balances for a period.
// Unbalanced extracts are accepted by default so entities can stage work in
// progress; RequireBalance turns the imbalance into a hard reject.
// Resubmission replaces the prior extract wholesale.
func (s *Service) SubmitTrialBalance(ctx context.Context, tenantID string, input SubmitTrialBalanceInput) (TrialBalance, error) {
	if err := input.Validate(); err != nil {
		return TrialBalance{}, err
	}
	entity, err := s.GetEntity(ctx, tenantID, input.EntityID)
	if err != nil {
		return TrialBalance{}, err
	}
	if _, err := s.guardPeriodWritable(ctx, tenantID, input.PeriodID); err != nil {
		return TrialBalance{}, err
	}

	accounts := make([]TrialBalanceAccount, 0, len(input.Entries))
	var totalDebits, totalCredits float64
	for _, e := range input.Entries {
		class := e.Class
		if class == "" {
			class = ClassifyAccount(e.AccountCode)
		}
		debit := round2(e.Debit)
		credit := round2(e.Credit)
		accounts = append(accounts, TrialBalanceAccount{
			AccountCode:      e.AccountCode,
			AccountName:      e.AccountName,
			Class:            class,
			Debit:            debit,
			Credit:           credit,
			FunctionalAmount: naturalAmount(class, debit, credit),
		})
		totalDebits += debit
		totalCredits += credit
	}
	totalDebits = round2(totalDebits)
	totalCredits = round2(totalCredits)
	balanced := equalAmounts(totalDebits, totalCredits)
	if input.RequireBalance && !balanced {
		return TrialBalance{}, fmt.Errorf("%w: trial balance off by %.2f", ErrValidation, totalDebits-totalCredits)
	}

	tb := TrialBalance{
		TenantID:     tenantID,
		EntityID:     entity.ID,
		EntityName:   entity.Name,
		PeriodID:     input.PeriodID,
		Accounts:     accounts,
		TotalDebits:  totalDebits,
		TotalCredits: totalCredits,
		IsBalanced:   balanced,
		SubmittedAt:  s.now(),
	}
	if err := s.stores.Balances.PutTrialBalance(ctx, tb); err != nil {
		return TrialBalance{}, err
	}
	s.log().Info("submitted trial balance",
		slog.String("entity_id", entity.ID),
		slog.String("period_id", input.PeriodID),
		slog.Int("accounts", len(accounts)),
		slog.Bool("balanced", balanced))
	s.recordAudit(ctx, tenantID, "", "trial_balance_submitted", "trial_balances", entity.ID, map[string]any{
		"period_id": input.PeriodID,
		"accounts":  len(accounts),
		"balanced":  balanced,
	})
	return tb, nil
}

// GetTrialBalance returns the stored extract for one entity and period.
func (s *Service) GetTrialBalance(ctx context.Context, tenantID, entityID, periodID string) (TrialBalance, error) {
	tb, err := s.stores.Balances.GetTrialBalance(ctx, tenantID, entityID, periodID)
	if err != nil {
		return TrialBalance{}, fmt.Errorf("%w: entity %s period %s", ErrBalanceNotFound, entityID, periodID)
	}
	return tb, nil
}
