package http

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/consolidex/consolidex/internal/consolidation"
)

var validate = validator.New()

type createEntityRequest struct {
	Code                string  `json:"code" validate:"required,max=32"`
	Name                string  `json:"name" validate:"required,max=255"`
	Type                string  `json:"type" validate:"required,oneof=HOLDING SUBSIDIARY ASSOCIATE JOINT_VENTURE BRANCH"`
	ParentEntityID      string  `json:"parentEntityId"`
	OwnershipPercentage float64 `json:"ownershipPercentage" validate:"gte=0,lte=100"`
	ConsolidationMethod string  `json:"consolidationMethod" validate:"required,oneof=FULL PROPORTIONAL EQUITY NONE"`
	FunctionalCurrency  string  `json:"functionalCurrency" validate:"required,len=3"`
	ReportingCurrency   string  `json:"reportingCurrency" validate:"required,len=3"`
	TranslationMethod   string  `json:"translationMethod" validate:"required,oneof=CURRENT_RATE TEMPORAL AVERAGE_RATE"`
	FiscalYearEnd       string  `json:"fiscalYearEnd"`
	Country             string  `json:"country"`
	TaxID               string  `json:"taxId"`
}

func (req createEntityRequest) toInput() consolidation.CreateEntityInput {
	return consolidation.CreateEntityInput{
		Code:                req.Code,
		Name:                req.Name,
		Type:                consolidation.EntityType(req.Type),
		ParentEntityID:      req.ParentEntityID,
		OwnershipPercentage: req.OwnershipPercentage,
		ConsolidationMethod: consolidation.ConsolidationMethod(req.ConsolidationMethod),
		FunctionalCurrency:  req.FunctionalCurrency,
		ReportingCurrency:   req.ReportingCurrency,
		TranslationMethod:   consolidation.TranslationMethod(req.TranslationMethod),
		FiscalYearEnd:       req.FiscalYearEnd,
		Country:             req.Country,
		TaxID:               req.TaxID,
	}
}

type updateEntityRequest struct {
	Name                *string  `json:"name" validate:"omitempty,max=255"`
	ParentEntityID      *string  `json:"parentEntityId"`
	OwnershipPercentage *float64 `json:"ownershipPercentage" validate:"omitempty,gte=0,lte=100"`
	ConsolidationMethod *string  `json:"consolidationMethod" validate:"omitempty,oneof=FULL PROPORTIONAL EQUITY NONE"`
	TranslationMethod   *string  `json:"translationMethod" validate:"omitempty,oneof=CURRENT_RATE TEMPORAL AVERAGE_RATE"`
	IsActive            *bool    `json:"isActive"`
}

func (req updateEntityRequest) toInput() consolidation.UpdateEntityInput {
	in := consolidation.UpdateEntityInput{
		Name:                req.Name,
		ParentEntityID:      req.ParentEntityID,
		OwnershipPercentage: req.OwnershipPercentage,
		IsActive:            req.IsActive,
	}
	if req.ConsolidationMethod != nil {
		m := consolidation.ConsolidationMethod(*req.ConsolidationMethod)
		in.ConsolidationMethod = &m
	}
	if req.TranslationMethod != nil {
		m := consolidation.TranslationMethod(*req.TranslationMethod)
		in.TranslationMethod = &m
	}
	return in
}

type createPeriodRequest struct {
	Name      string    `json:"name" validate:"required,max=255"`
	Year      int       `json:"year" validate:"required,gte=1900,lte=9999"`
	Period    int       `json:"period" validate:"required,gte=1,lte=12"`
	Type      string    `json:"type" validate:"required,oneof=MONTHLY QUARTERLY ANNUAL"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

func (req createPeriodRequest) toInput() consolidation.CreatePeriodInput {
	return consolidation.CreatePeriodInput{
		Name:      req.Name,
		Year:      req.Year,
		Period:    req.Period,
		Type:      consolidation.PeriodType(req.Type),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DRAFT IN_PROGRESS REVIEW APPROVED PUBLISHED"`
}

type rateRow struct {
	Currency    string    `json:"currency" validate:"required,len=3"`
	Date        time.Time `json:"date"`
	ClosingRate float64   `json:"closingRate" validate:"gte=0"`
	AverageRate float64   `json:"averageRate" validate:"gte=0"`
}

type setRatesRequest struct {
	Rates []rateRow `json:"rates" validate:"required,min=1,dive"`
}

type setExchangeRateRequest struct {
	FromCurrency string    `json:"fromCurrency" validate:"required,len=3"`
	ToCurrency   string    `json:"toCurrency" validate:"required,len=3"`
	Date         time.Time `json:"date"`
	Rate         float64   `json:"rate" validate:"required,gt=0"`
	RateType     string    `json:"rateType" validate:"required,oneof=SPOT AVERAGE"`
}

type trialBalanceRow struct {
	AccountCode string  `json:"accountCode" validate:"required,max=32"`
	AccountName string  `json:"accountName"`
	Class       string  `json:"class" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
}

type submitTrialBalanceRequest struct {
	Entries        []trialBalanceRow `json:"entries" validate:"required,min=1,dive"`
	RequireBalance bool              `json:"requireBalance"`
}

func (req submitTrialBalanceRequest) toInput(entityID, periodID string) consolidation.SubmitTrialBalanceInput {
	entries := make([]consolidation.TrialBalanceEntry, 0, len(req.Entries))
	for _, row := range req.Entries {
		entries = append(entries, consolidation.TrialBalanceEntry{
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			Class:       consolidation.AccountClass(row.Class),
			Debit:       row.Debit,
			Credit:      row.Credit,
		})
	}
	return consolidation.SubmitTrialBalanceInput{
		EntityID:       entityID,
		PeriodID:       periodID,
		Entries:        entries,
		RequireBalance: req.RequireBalance,
	}
}

type recordTransactionRequest struct {
	SourceEntityID string  `json:"sourceEntityId" validate:"required"`
	TargetEntityID string  `json:"targetEntityId" validate:"required"`
	Type           string  `json:"type" validate:"required,oneof=INTERCOMPANY_RECEIVABLE INTERCOMPANY_PAYABLE INTERCOMPANY_REVENUE INTERCOMPANY_EXPENSE INVESTMENT_ELIMINATION"`
	AccountCode    string  `json:"accountCode" validate:"required,max=32"`
	Description    string  `json:"description"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	Currency       string  `json:"currency" validate:"required,len=3"`
}

func (req recordTransactionRequest) toInput(periodID string) consolidation.RecordTransactionInput {
	return consolidation.RecordTransactionInput{
		PeriodID:       periodID,
		SourceEntityID: req.SourceEntityID,
		TargetEntityID: req.TargetEntityID,
		Type:           consolidation.TransactionType(req.Type),
		AccountCode:    req.AccountCode,
		Description:    req.Description,
		Amount:         req.Amount,
		Currency:       req.Currency,
	}
}

type journalLineRequest struct {
	EntityID    string  `json:"entityId" validate:"required"`
	AccountCode string  `json:"accountCode" validate:"required,max=32"`
	Description string  `json:"description"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
}

type createEliminationRequest struct {
	Description   string               `json:"description" validate:"required,max=500"`
	RuleID        string               `json:"ruleId"`
	TransactionID string               `json:"transactionId"`
	Lines         []journalLineRequest `json:"lines" validate:"required,min=2,dive"`
}

func (req createEliminationRequest) toInput() consolidation.CreateEntryInput {
	lines := make([]consolidation.JournalLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, consolidation.JournalLine{
			EntityID:    l.EntityID,
			AccountCode: l.AccountCode,
			Description: l.Description,
			Debit:       l.Debit,
			Credit:      l.Credit,
			Currency:    l.Currency,
		})
	}
	return consolidation.CreateEntryInput{
		Description:   req.Description,
		RuleID:        req.RuleID,
		TransactionID: req.TransactionID,
		Lines:         lines,
	}
}
