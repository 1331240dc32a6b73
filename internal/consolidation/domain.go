// Package consolidation implements the multi-entity financial consolidation
// engine: legal-entity hierarchy, period workflow, currency translation,
// intercompany matching, elimination entries, and consolidated statements.
package consolidation

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

// EntityType classifies a legal entity within the group structure.
type EntityType string

const (
	EntityHolding      EntityType = "HOLDING"
	EntitySubsidiary   EntityType = "SUBSIDIARY"
	EntityAssociate    EntityType = "ASSOCIATE"
	EntityJointVenture EntityType = "JOINT_VENTURE"
	EntityBranch       EntityType = "BRANCH"
)

// ConsolidationMethod determines how much of an entity folds into the group.
type ConsolidationMethod string

const (
	MethodFull         ConsolidationMethod = "FULL"
	MethodProportional ConsolidationMethod = "PROPORTIONAL"
	MethodEquity       ConsolidationMethod = "EQUITY"
	MethodNone         ConsolidationMethod = "NONE"
)

// TranslationMethod selects the FX rate applied per account class.
type TranslationMethod string

const (
	TranslateCurrentRate TranslationMethod = "CURRENT_RATE"
	TranslateTemporal    TranslationMethod = "TEMPORAL"
	TranslateAverageRate TranslationMethod = "AVERAGE_RATE"
)

// PeriodType enumerates supported consolidation cadences.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "MONTHLY"
	PeriodQuarterly PeriodType = "QUARTERLY"
	PeriodAnnual    PeriodType = "ANNUAL"
)

// PeriodStatus captures the approval workflow state of a period.
type PeriodStatus string

const (
	PeriodDraft      PeriodStatus = "DRAFT"
	PeriodInProgress PeriodStatus = "IN_PROGRESS"
	PeriodReview     PeriodStatus = "REVIEW"
	PeriodApproved   PeriodStatus = "APPROVED"
	PeriodPublished  PeriodStatus = "PUBLISHED"
)

// nextPeriodStatus holds the single allowed successor per status. The
// workflow is forward-only; PUBLISHED is terminal.
var nextPeriodStatus = map[PeriodStatus]PeriodStatus{
	PeriodDraft:      PeriodInProgress,
	PeriodInProgress: PeriodReview,
	PeriodReview:     PeriodApproved,
	PeriodApproved:   PeriodPublished,
}

// TransactionType enumerates intercompany transaction categories.
type TransactionType string

const (
	TypeIntercompanyReceivable TransactionType = "INTERCOMPANY_RECEIVABLE"
	TypeIntercompanyPayable    TransactionType = "INTERCOMPANY_PAYABLE"
	TypeIntercompanyRevenue    TransactionType = "INTERCOMPANY_REVENUE"
	TypeIntercompanyExpense    TransactionType = "INTERCOMPANY_EXPENSE"
	TypeInvestmentElimination  TransactionType = "INVESTMENT_ELIMINATION"
)

// counterpartType maps each transaction type to the complementary type it
// matches against. INVESTMENT_ELIMINATION has no complement and always
// resolves manually.
var counterpartType = map[TransactionType]TransactionType{
	TypeIntercompanyReceivable: TypeIntercompanyPayable,
	TypeIntercompanyPayable:    TypeIntercompanyReceivable,
	TypeIntercompanyRevenue:    TypeIntercompanyExpense,
	TypeIntercompanyExpense:    TypeIntercompanyRevenue,
}

// TransactionStatus captures the matching lifecycle of a transaction.
type TransactionStatus string

const (
	TxnPending    TransactionStatus = "PENDING"
	TxnMatched    TransactionStatus = "MATCHED"
	TxnEliminated TransactionStatus = "ELIMINATED"
	TxnException  TransactionStatus = "EXCEPTION"
)

// EntryStatus captures the posting lifecycle of an elimination entry.
type EntryStatus string

const (
	EntryDraft  EntryStatus = "DRAFT"
	EntryPosted EntryStatus = "POSTED"
)

// AccountClass classifies trial balance accounts for translation and
// statement grouping.
type AccountClass string

const (
	ClassAsset     AccountClass = "ASSET"
	ClassLiability AccountClass = "LIABILITY"
	ClassEquity    AccountClass = "EQUITY"
	ClassRevenue   AccountClass = "REVENUE"
	ClassExpense   AccountClass = "EXPENSE"
)

// StatementType enumerates consolidated statement kinds.
type StatementType string

const (
	StatementBalanceSheet    StatementType = "BALANCE_SHEET"
	StatementIncomeStatement StatementType = "INCOME_STATEMENT"
	StatementCashFlow        StatementType = "CASH_FLOW"
)

// RateType distinguishes spot (closing) from average exchange rates.
type RateType string

const (
	RateSpot    RateType = "SPOT"
	RateAverage RateType = "AVERAGE"
)

// LegalEntity is a company in the ownership hierarchy. Parent/child edges
// are id references, never embedded pointers.
type LegalEntity struct {
	ID                  string              `json:"id"`
	TenantID            string              `json:"tenantId"`
	Code                string              `json:"code"`
	Name                string              `json:"name"`
	Type                EntityType          `json:"type"`
	ParentEntityID      string              `json:"parentEntityId"`
	OwnershipPercentage float64             `json:"ownershipPercentage"`
	ConsolidationMethod ConsolidationMethod `json:"consolidationMethod"`
	FunctionalCurrency  string              `json:"functionalCurrency"`
	ReportingCurrency   string              `json:"reportingCurrency"`
	TranslationMethod   TranslationMethod   `json:"translationMethod"`
	FiscalYearEnd       string              `json:"fiscalYearEnd"`
	Country             string              `json:"country"`
	TaxID               string              `json:"taxId"`
	IsActive            bool                `json:"isActive"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// EntityNode is one node of the ownership tree with compounded ownership.
type EntityNode struct {
	Entity             LegalEntity  `json:"entity"`
	Children           []EntityNode `json:"children"`
	Level              int          `json:"level"`
	EffectiveOwnership float64      `json:"effectiveOwnership"`
}

// ConsolidationPeriod is one reporting window under the approval workflow.
type ConsolidationPeriod struct {
	ID        string       `json:"id"`
	TenantID  string       `json:"tenantId"`
	Name      string       `json:"name"`
	Year      int          `json:"year"`
	Period    int          `json:"period"`
	Type      PeriodType   `json:"type"`
	StartDate time.Time    `json:"startDate"`
	EndDate   time.Time    `json:"endDate"`
	Status    PeriodStatus `json:"status"`
	LockedAt  *time.Time   `json:"lockedAt,omitempty"`
	LockedBy  string       `json:"lockedBy"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Locked reports whether the period refuses further mutations.
func (p ConsolidationPeriod) Locked() bool {
	return p.LockedAt != nil
}

// CurrencyRate holds externally supplied rates for one currency on one date.
// Period-scoped rows quote against the group reporting currency and leave
// BaseCurrency empty; generic pair rows carry both sides and no period.
type CurrencyRate struct {
	TenantID     string    `json:"tenantId"`
	PeriodID     string    `json:"periodId"`
	Currency     string    `json:"currency"`
	BaseCurrency string    `json:"baseCurrency"`
	Date         time.Time `json:"date"`
	ClosingRate  float64   `json:"closingRate"`
	AverageRate  float64   `json:"averageRate"`
}

// TrialBalanceAccount is one translated account row.
type TrialBalanceAccount struct {
	AccountCode           string       `json:"accountCode"`
	AccountName           string       `json:"accountName"`
	Class                 AccountClass `json:"class"`
	Debit                 float64      `json:"debit"`
	Credit                float64      `json:"credit"`
	FunctionalAmount      float64      `json:"functionalAmount"`
	ReportingAmount       float64      `json:"reportingAmount"`
	ExchangeRate          float64      `json:"exchangeRate"`
	TranslationAdjustment float64      `json:"translationAdjustment"`
}

// TrialBalance is the full set of an entity's account balances for a period.
type TrialBalance struct {
	TenantID     string                `json:"tenantId"`
	EntityID     string                `json:"entityId"`
	EntityName   string                `json:"entityName"`
	PeriodID     string                `json:"periodId"`
	Accounts     []TrialBalanceAccount `json:"accounts"`
	TotalDebits  float64               `json:"totalDebits"`
	TotalCredits float64               `json:"totalCredits"`
	IsBalanced   bool                  `json:"isBalanced"`
	SubmittedAt  time.Time             `json:"submittedAt"`
}

// IntercompanyTransaction is one leg of a cross-entity transaction.
type IntercompanyTransaction struct {
	ID                   string            `json:"id"`
	TenantID             string            `json:"tenantId"`
	PeriodID             string            `json:"periodId"`
	SourceEntityID       string            `json:"sourceEntityId"`
	TargetEntityID       string            `json:"targetEntityId"`
	Type                 TransactionType   `json:"type"`
	AccountCode          string            `json:"accountCode"`
	Description          string            `json:"description"`
	Amount               float64           `json:"amount"`
	Currency             string            `json:"currency"`
	Status               TransactionStatus `json:"status"`
	MatchedTransactionID string            `json:"matchedTransactionId"`
	EliminationEntryID   string            `json:"eliminationEntryId"`
	CreatedAt            time.Time         `json:"createdAt"`
}

// JournalLine is one side of an elimination entry.
type JournalLine struct {
	EntityID        string  `json:"entityId"`
	AccountCode     string  `json:"accountCode"`
	Description     string  `json:"description"`
	Debit           float64 `json:"debit"`
	Credit          float64 `json:"credit"`
	Currency        string  `json:"currency"`
	ExchangeRate    float64 `json:"exchangeRate"`
	ReportingAmount float64 `json:"reportingAmount"`
}

// EliminationEntry is a balanced adjustment removing intercompany effects.
type EliminationEntry struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenantId"`
	PeriodID      string        `json:"periodId"`
	RuleID        string        `json:"ruleId"`
	TransactionID string        `json:"transactionId"`
	Description   string        `json:"description"`
	Lines         []JournalLine `json:"lines"`
	Amount        float64       `json:"amount"`
	Status        EntryStatus   `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	PostedAt      *time.Time    `json:"postedAt,omitempty"`
	PostedBy      string        `json:"postedBy"`
}

// ConsolidationRule describes pattern-based elimination rule metadata.
type ConsolidationRule struct {
	ID                   string          `json:"id"`
	TenantID             string          `json:"tenantId"`
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	SourceAccountPattern string          `json:"sourceAccountPattern"`
	TargetAccountPattern string          `json:"targetAccountPattern"`
	Type                 TransactionType `json:"type"`
	IsAutomatic          bool            `json:"isAutomatic"`
	Priority             int             `json:"priority"`
	IsActive             bool            `json:"isActive"`
}

// StatementLine is one consolidated account row with per-entity detail.
type StatementLine struct {
	AccountCode  string             `json:"accountCode"`
	AccountName  string             `json:"accountName"`
	Amounts      map[string]float64 `json:"amounts"`
	Eliminations float64            `json:"eliminations"`
	Consolidated float64            `json:"consolidated"`
}

// StatementSection is a named group of statement lines.
type StatementSection struct {
	Name     string          `json:"name"`
	Lines    []StatementLine `json:"lines"`
	Subtotal float64         `json:"subtotal"`
}

// ConsolidatedStatement is a derived report; it is regenerated per request
// and never stored as a mutable entity.
type ConsolidatedStatement struct {
	PeriodID          string             `json:"periodId"`
	PeriodName        string             `json:"periodName"`
	Type              StatementType      `json:"type"`
	ReportingCurrency string             `json:"reportingCurrency"`
	GeneratedAt       time.Time          `json:"generatedAt"`
	Entities          []string           `json:"entities"`
	Sections          []StatementSection `json:"sections"`
	Totals            map[string]float64 `json:"totals"`
}

// Sentinel errors surfaced by the engine. Each carries enough context when
// wrapped that a caller can act without re-deriving state.
var (
	ErrEntityNotFound      = errors.New("consolidation: entity not found")
	ErrPeriodNotFound      = errors.New("consolidation: period not found")
	ErrTransactionNotFound = errors.New("consolidation: transaction not found")
	ErrEntryNotFound       = errors.New("consolidation: elimination entry not found")
	ErrBalanceNotFound     = errors.New("consolidation: trial balance not found")
	ErrParentNotFound      = errors.New("consolidation: parent entity not found")
	ErrHasChildren         = errors.New("consolidation: entity has children")
	ErrOwnershipCycle      = errors.New("consolidation: parent assignment would create a cycle")
	ErrInvalidTransition   = errors.New("consolidation: period status transition not allowed")
	ErrPeriodLocked        = errors.New("consolidation: period is locked")
	ErrEntryUnbalanced     = errors.New("consolidation: elimination entry must balance")
	ErrAlreadyPosted       = errors.New("consolidation: elimination entry already posted")
	ErrEntryPosted         = errors.New("consolidation: posted elimination entry is immutable")
	ErrDuplicateCode       = errors.New("consolidation: entity code already exists")
	ErrValidation          = errors.New("consolidation: validation failed")
)

// balanceTolerance is the epsilon under which debit/credit totals are
// considered equal. Amounts are reporting-currency floats rounded to cents.
const balanceTolerance = 0.01

// ValidCurrency reports whether code is a well-formed ISO 4217 currency.
func ValidCurrency(code string) bool {
	_, err := currency.ParseISO(strings.TrimSpace(code))
	return err == nil
}

// ClassifyAccount infers the account class from the leading digit of the
// account code. Callers may supply an explicit class on submission; this
// default covers ledger extracts that omit it.
func ClassifyAccount(code string) AccountClass {
	code = strings.TrimSpace(code)
	if code == "" {
		return ClassAsset
	}
	switch code[0] {
	case '4':
		return ClassLiability
	case '5':
		return ClassEquity
	case '6':
		return ClassExpense
	case '7':
		return ClassRevenue
	default:
		return ClassAsset
	}
}

// balanceSheetClass reports whether the class belongs on the balance sheet.
func balanceSheetClass(c AccountClass) bool {
	return c == ClassAsset || c == ClassLiability || c == ClassEquity
}

// debitNatural reports whether the class carries a natural debit balance.
func debitNatural(c AccountClass) bool {
	return c == ClassAsset || c == ClassExpense
}

// naturalAmount returns the account balance on its natural side.
func naturalAmount(class AccountClass, debit, credit float64) float64 {
	if debitNatural(class) {
		return debit - credit
	}
	return credit - debit
}
