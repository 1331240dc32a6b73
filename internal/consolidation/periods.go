package consolidation

import (
	"context"
	"fmt"
	"log/slog"
)

// CreatePeriod opens a consolidation period in DRAFT.
func (s *Service) CreatePeriod(ctx context.Context, tenantID string, input CreatePeriodInput) (ConsolidationPeriod, error) {
	if err := input.Validate(); err != nil {
		return ConsolidationPeriod{}, err
	}
	now := s.now()
	period := ConsolidationPeriod{
		ID:        s.newID(),
		TenantID:  tenantID,
		Name:      input.Name,
		Year:      input.Year,
		Period:    input.Period,
		Type:      input.Type,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Status:    PeriodDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.stores.Periods.InsertPeriod(ctx, period); err != nil {
		return ConsolidationPeriod{}, err
	}
	s.log().Info("created consolidation period",
		slog.String("period_id", period.ID),
		slog.String("name", period.Name),
		slog.String("tenant_id", tenantID))
	s.recordAudit(ctx, tenantID, "", "period_created", "consolidation_periods", period.ID, map[string]any{
		"name": period.Name,
		"year": period.Year,
	})
	return period, nil
}

// GetPeriod returns a tenant-scoped period by id.
func (s *Service) GetPeriod(ctx context.Context, tenantID, periodID string) (ConsolidationPeriod, error) {
	period, err := s.stores.Periods.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationPeriod{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, periodID)
	}
	return period, nil
}

// GetPeriods lists tenant periods matching the filter, newest first.
func (s *Service) GetPeriods(ctx context.Context, tenantID string, filter PeriodFilter) ([]ConsolidationPeriod, error) {
	return s.stores.Periods.ListPeriods(ctx, tenantID, filter)
}

// UpdatePeriodStatus advances the workflow. Only the single forward
// successor of the current status is accepted; everything else is rejected.
// Reaching PUBLISHED stamps the lock fields.
func (s *Service) UpdatePeriodStatus(ctx context.Context, tenantID, periodID string, next PeriodStatus, userID string) (ConsolidationPeriod, error) {
	unlock := s.locks.Acquire(tenantID, periodID)
	defer unlock()
	return s.updatePeriodStatusLocked(ctx, tenantID, periodID, next, userID)
}

// updatePeriodStatusLocked assumes the caller already holds the period lock.
func (s *Service) updatePeriodStatusLocked(ctx context.Context, tenantID, periodID string, next PeriodStatus, userID string) (ConsolidationPeriod, error) {
	period, err := s.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationPeriod{}, err
	}
	if allowed, ok := nextPeriodStatus[period.Status]; !ok || allowed != next {
		return ConsolidationPeriod{}, fmt.Errorf("%w: %s cannot move %s -> %s", ErrInvalidTransition, periodID, period.Status, next)
	}
	now := s.now()
	period.Status = next
	period.UpdatedAt = now
	if next == PeriodPublished {
		period.LockedAt = &now
		period.LockedBy = userID
	}
	if err := s.stores.Periods.UpdatePeriod(ctx, period); err != nil {
		return ConsolidationPeriod{}, err
	}
	s.recordAudit(ctx, tenantID, userID, "period_status_changed", "consolidation_periods", periodID, map[string]any{
		"status": string(next),
	})
	return period, nil
}

// LockPeriod is an administrative override: it jumps the period straight to
// APPROVED and stamps the lock, bypassing the normal sequence. Distinct from
// UpdatePeriodStatus by design.
func (s *Service) LockPeriod(ctx context.Context, tenantID, periodID, userID string) (ConsolidationPeriod, error) {
	unlock := s.locks.Acquire(tenantID, periodID)
	defer unlock()
	period, err := s.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationPeriod{}, err
	}
	now := s.now()
	period.Status = PeriodApproved
	period.LockedAt = &now
	period.LockedBy = userID
	period.UpdatedAt = now
	if err := s.stores.Periods.UpdatePeriod(ctx, period); err != nil {
		return ConsolidationPeriod{}, err
	}
	s.log().Info("locked period", slog.String("period_id", periodID), slog.String("locked_by", userID))
	s.recordAudit(ctx, tenantID, userID, "period_locked", "consolidation_periods", periodID, nil)
	return period, nil
}

// UnlockPeriod reverses an administrative lock, returning the period to
// IN_PROGRESS with the lock cleared.
func (s *Service) UnlockPeriod(ctx context.Context, tenantID, periodID, userID string) (ConsolidationPeriod, error) {
	unlock := s.locks.Acquire(tenantID, periodID)
	defer unlock()
	period, err := s.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationPeriod{}, err
	}
	now := s.now()
	period.Status = PeriodInProgress
	period.LockedAt = nil
	period.LockedBy = ""
	period.UpdatedAt = now
	if err := s.stores.Periods.UpdatePeriod(ctx, period); err != nil {
		return ConsolidationPeriod{}, err
	}
	s.recordAudit(ctx, tenantID, userID, "period_unlocked", "consolidation_periods", periodID, nil)
	return period, nil
}
