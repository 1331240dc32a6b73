package consolidation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/consolidex/consolidex/internal/shared"
)

// Service orchestrates the consolidation engine. All mutating sequences are
// serialised per (tenant, period); reads run concurrently against store
// snapshots.
type Service struct {
	stores Stores
	locks  *shared.PeriodLocks
	audit  shared.AuditRecorder
	logger *slog.Logger
	rules  []ConsolidationRule
	sf     singleflight.Group
	now    Clock
}

// NewService wires the engine with its stores and collaborators.
func NewService(stores Stores, locks *shared.PeriodLocks, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if locks == nil {
		locks = shared.NewPeriodLocks()
	}
	return &Service{
		stores: stores,
		locks:  locks,
		audit:  audit,
		logger: logger,
		rules:  defaultRules(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the clock for deterministic tests.
func (s *Service) WithClock(clock Clock) {
	if clock != nil {
		s.now = clock
	}
}

// Rules returns the configured elimination rule metadata.
func (s *Service) Rules() []ConsolidationRule {
	return append([]ConsolidationRule(nil), s.rules...)
}

func defaultRules() []ConsolidationRule {
	return []ConsolidationRule{
		{
			ID:                   "rule_ic_arap",
			TenantID:             "system",
			Name:                 "Intercompany Receivables/Payables",
			SourceAccountPattern: "13*",
			TargetAccountPattern: "40*",
			Type:                 TypeIntercompanyReceivable,
			IsAutomatic:          true,
			Priority:             1,
			IsActive:             true,
		},
		{
			ID:                   "rule_ic_revexp",
			TenantID:             "system",
			Name:                 "Intercompany Revenue/Expense",
			SourceAccountPattern: "70*",
			TargetAccountPattern: "60*",
			Type:                 TypeIntercompanyRevenue,
			IsAutomatic:          true,
			Priority:             2,
			IsActive:             true,
		},
		{
			ID:                   "rule_investment",
			TenantID:             "system",
			Name:                 "Investment Elimination",
			SourceAccountPattern: "26*",
			Type:                 TypeInvestmentElimination,
			IsAutomatic:          false,
			Priority:             3,
			IsActive:             true,
		},
	}
}

func (s *Service) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger.With(slog.String("component", "consolidation"))
	}
	return slog.Default().With(slog.String("component", "consolidation"))
}

func (s *Service) newID() string {
	return uuid.NewString()
}

// guardPeriodWritable loads the period and rejects mutations once it is
// locked or published. Enforced explicitly on every mutating path; the
// status field alone does not guarantee it.
func (s *Service) guardPeriodWritable(ctx context.Context, tenantID, periodID string) (ConsolidationPeriod, error) {
	period, err := s.stores.Periods.GetPeriod(ctx, tenantID, periodID)
	if err != nil {
		return ConsolidationPeriod{}, fmt.Errorf("%w: period %s", ErrPeriodNotFound, periodID)
	}
	if period.Locked() || period.Status == PeriodPublished {
		return ConsolidationPeriod{}, fmt.Errorf("%w: period %s (%s)", ErrPeriodLocked, periodID, period.Status)
	}
	return period, nil
}

// reportingCurrency resolves the group reporting currency from the active
// entities. Falls back to USD when no entity declares one.
func (s *Service) reportingCurrency(ctx context.Context, tenantID string) (string, error) {
	entities, err := s.stores.Entities.ListEntities(ctx, tenantID, EntityFilter{})
	if err != nil {
		return "", err
	}
	currency := "USD"
	for _, e := range entities {
		if e.IsActive && e.ReportingCurrency != "" {
			currency = e.ReportingCurrency
		}
	}
	return currency, nil
}

func (s *Service) recordAudit(ctx context.Context, tenantID, actorID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.log().Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func equalAmounts(a, b float64) bool {
	return math.Abs(a-b) < balanceTolerance
}
