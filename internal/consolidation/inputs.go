package consolidation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// CreateEntityInput captures fields for registering a legal entity.
type CreateEntityInput struct {
	Code                string
	Name                string
	Type                EntityType
	ParentEntityID      string
	OwnershipPercentage float64
	ConsolidationMethod ConsolidationMethod
	FunctionalCurrency  string
	ReportingCurrency   string
	TranslationMethod   TranslationMethod
	FiscalYearEnd       string
	Country             string
	TaxID               string
}

// Validate ensures the request is coherent.
func (in CreateEntityInput) Validate() error {
	if strings.TrimSpace(in.Code) == "" {
		return fmt.Errorf("%w: entity code required", ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: entity name required", ErrValidation)
	}
	switch in.Type {
	case EntityHolding, EntitySubsidiary, EntityAssociate, EntityJointVenture, EntityBranch:
	default:
		return fmt.Errorf("%w: unknown entity type %q", ErrValidation, in.Type)
	}
	if in.OwnershipPercentage < 0 || in.OwnershipPercentage > 100 {
		return fmt.Errorf("%w: ownership percentage %.2f outside 0-100", ErrValidation, in.OwnershipPercentage)
	}
	switch in.ConsolidationMethod {
	case MethodFull, MethodProportional, MethodEquity, MethodNone:
	default:
		return fmt.Errorf("%w: unknown consolidation method %q", ErrValidation, in.ConsolidationMethod)
	}
	switch in.TranslationMethod {
	case TranslateCurrentRate, TranslateTemporal, TranslateAverageRate:
	default:
		return fmt.Errorf("%w: unknown translation method %q", ErrValidation, in.TranslationMethod)
	}
	if !ValidCurrency(in.FunctionalCurrency) {
		return fmt.Errorf("%w: functional currency %q is not ISO 4217", ErrValidation, in.FunctionalCurrency)
	}
	if !ValidCurrency(in.ReportingCurrency) {
		return fmt.Errorf("%w: reporting currency %q is not ISO 4217", ErrValidation, in.ReportingCurrency)
	}
	return nil
}

// UpdateEntityInput mutates entity fields after creation. Codes are fixed;
// re-parenting is allowed but rejected when it would create a cycle.
type UpdateEntityInput struct {
	Name                *string
	ParentEntityID      *string
	OwnershipPercentage *float64
	ConsolidationMethod *ConsolidationMethod
	TranslationMethod   *TranslationMethod
	IsActive            *bool
}

// Validate ensures supplied fields are coherent.
func (in UpdateEntityInput) Validate() error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: entity name required", ErrValidation)
	}
	if in.OwnershipPercentage != nil && (*in.OwnershipPercentage < 0 || *in.OwnershipPercentage > 100) {
		return fmt.Errorf("%w: ownership percentage outside 0-100", ErrValidation)
	}
	if in.ConsolidationMethod != nil {
		switch *in.ConsolidationMethod {
		case MethodFull, MethodProportional, MethodEquity, MethodNone:
		default:
			return fmt.Errorf("%w: unknown consolidation method %q", ErrValidation, *in.ConsolidationMethod)
		}
	}
	if in.TranslationMethod != nil {
		switch *in.TranslationMethod {
		case TranslateCurrentRate, TranslateTemporal, TranslateAverageRate:
		default:
			return fmt.Errorf("%w: unknown translation method %q", ErrValidation, *in.TranslationMethod)
		}
	}
	return nil
}

// EntityFilter narrows entity listings.
type EntityFilter struct {
	Type     EntityType
	ParentID string
	IsActive *bool
}

// CreatePeriodInput captures fields for opening a consolidation period.
type CreatePeriodInput struct {
	Name      string
	Year      int
	Period    int
	Type      PeriodType
	StartDate time.Time
	EndDate   time.Time
}

// Validate ensures the period window is coherent.
func (in CreatePeriodInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: period name required", ErrValidation)
	}
	if in.Year < 1900 || in.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrValidation, in.Year)
	}
	var max int
	switch in.Type {
	case PeriodMonthly:
		max = 12
	case PeriodQuarterly:
		max = 4
	case PeriodAnnual:
		max = 1
	default:
		return fmt.Errorf("%w: unknown period type %q", ErrValidation, in.Type)
	}
	if in.Period < 1 || in.Period > max {
		return fmt.Errorf("%w: period index %d outside 1-%d for %s", ErrValidation, in.Period, max, in.Type)
	}
	if !in.EndDate.After(in.StartDate) {
		return fmt.Errorf("%w: period end must follow start", ErrValidation)
	}
	return nil
}

// PeriodFilter narrows period listings.
type PeriodFilter struct {
	Year   int
	Status PeriodStatus
}

// RateInput is one externally supplied rate row.
type RateInput struct {
	Currency    string
	Date        time.Time
	ClosingRate float64
	AverageRate float64
}

// Validate ensures the rate row is usable.
func (in RateInput) Validate() error {
	if !ValidCurrency(in.Currency) {
		return fmt.Errorf("%w: currency %q is not ISO 4217", ErrValidation, in.Currency)
	}
	if in.ClosingRate < 0 || in.AverageRate < 0 {
		return fmt.Errorf("%w: rates must not be negative", ErrValidation)
	}
	return nil
}

// ExchangeRateInput upserts a rate independent of any period.
type ExchangeRateInput struct {
	FromCurrency string
	ToCurrency   string
	Date         time.Time
	Rate         float64
	RateType     RateType
}

// Validate ensures the pair and rate are usable.
func (in ExchangeRateInput) Validate() error {
	if !ValidCurrency(in.FromCurrency) || !ValidCurrency(in.ToCurrency) {
		return fmt.Errorf("%w: currency pair %s/%s is not ISO 4217", ErrValidation, in.FromCurrency, in.ToCurrency)
	}
	if in.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", ErrValidation)
	}
	switch in.RateType {
	case RateSpot, RateAverage:
	default:
		return fmt.Errorf("%w: unknown rate type %q", ErrValidation, in.RateType)
	}
	return nil
}

// ExchangeRateFilter narrows generic rate lookups.
type ExchangeRateFilter struct {
	Currency  string
	StartDate time.Time
	EndDate   time.Time
}

// TrialBalanceEntry is one submitted account row. Class is optional; when
// empty the account code prefix decides.
type TrialBalanceEntry struct {
	AccountCode string
	AccountName string
	Class       AccountClass
	Debit       float64
	Credit      float64
}

// SubmitTrialBalanceInput carries a full per-entity extract.
type SubmitTrialBalanceInput struct {
	EntityID       string
	PeriodID       string
	Entries        []TrialBalanceEntry
	RequireBalance bool
}

// Validate ensures the extract has usable rows.
func (in SubmitTrialBalanceInput) Validate() error {
	if in.EntityID == "" || in.PeriodID == "" {
		return fmt.Errorf("%w: entity and period required", ErrValidation)
	}
	if len(in.Entries) == 0 {
		return fmt.Errorf("%w: at least one trial balance row required", ErrValidation)
	}
	for i, e := range in.Entries {
		if strings.TrimSpace(e.AccountCode) == "" {
			return fmt.Errorf("%w: row %d missing account code", ErrValidation, i)
		}
		if e.Debit < 0 || e.Credit < 0 {
			return fmt.Errorf("%w: row %d has negative amounts", ErrValidation, i)
		}
		if math.IsNaN(e.Debit) || math.IsNaN(e.Credit) || math.IsInf(e.Debit, 0) || math.IsInf(e.Credit, 0) {
			return fmt.Errorf("%w: row %d has non-finite amounts", ErrValidation, i)
		}
	}
	return nil
}

// RecordTransactionInput captures one intercompany transaction leg.
type RecordTransactionInput struct {
	PeriodID       string
	SourceEntityID string
	TargetEntityID string
	Type           TransactionType
	AccountCode    string
	Description    string
	Amount         float64
	Currency       string
}

// Validate ensures the leg is coherent.
func (in RecordTransactionInput) Validate() error {
	if in.PeriodID == "" {
		return fmt.Errorf("%w: period required", ErrValidation)
	}
	if in.SourceEntityID == "" || in.TargetEntityID == "" {
		return fmt.Errorf("%w: source and target entities required", ErrValidation)
	}
	if in.SourceEntityID == in.TargetEntityID {
		return fmt.Errorf("%w: source and target entities must differ", ErrValidation)
	}
	switch in.Type {
	case TypeIntercompanyReceivable, TypeIntercompanyPayable, TypeIntercompanyRevenue, TypeIntercompanyExpense, TypeInvestmentElimination:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, in.Type)
	}
	if strings.TrimSpace(in.AccountCode) == "" {
		return fmt.Errorf("%w: account code required", ErrValidation)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !ValidCurrency(in.Currency) {
		return fmt.Errorf("%w: currency %q is not ISO 4217", ErrValidation, in.Currency)
	}
	return nil
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	EntityID string
	Status   TransactionStatus
	Type     TransactionType
}

// CreateEntryInput captures a manual elimination entry.
type CreateEntryInput struct {
	Description   string
	RuleID        string
	TransactionID string
	Lines         []JournalLine
}

// Validate ensures lines are present and well-formed. Balance enforcement
// happens in the service so the error carries the computed totals.
func (in CreateEntryInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: entry description required", ErrValidation)
	}
	if len(in.Lines) < 2 {
		return fmt.Errorf("%w: an elimination entry needs at least two lines", ErrValidation)
	}
	for i, line := range in.Lines {
		if line.EntityID == "" {
			return fmt.Errorf("%w: line %d missing entity", ErrValidation, i)
		}
		if strings.TrimSpace(line.AccountCode) == "" {
			return fmt.Errorf("%w: line %d missing account code", ErrValidation, i)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d has negative amounts", ErrValidation, i)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("%w: line %d must be debit or credit, not both", ErrValidation, i)
		}
	}
	return nil
}

// EntryFilter narrows elimination entry listings.
type EntryFilter struct {
	Status EntryStatus
}
