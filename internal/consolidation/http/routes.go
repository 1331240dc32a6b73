package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/consolidex/consolidex/internal/consolidation"
	"github.com/consolidex/consolidex/internal/platform/httpx"
)

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	if err := validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	var req createEntityRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	entity, err := h.service.CreateEntity(r.Context(), tenantID(r), req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entity)
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	filter := consolidation.EntityFilter{
		Type:     consolidation.EntityType(r.URL.Query().Get("type")),
		ParentID: r.URL.Query().Get("parentId"),
	}
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		active := raw == "true"
		filter.IsActive = &active
	}
	entities, err := h.service.GetEntities(r.Context(), tenantID(r), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entities)
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := h.service.GetEntity(r.Context(), tenantID(r), chi.URLParam(r, "entityID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entity)
}

func (h *Handler) updateEntity(w http.ResponseWriter, r *http.Request) {
	var req updateEntityRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	entity, err := h.service.UpdateEntity(r.Context(), tenantID(r), chi.URLParam(r, "entityID"), req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entity)
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEntity(r.Context(), tenantID(r), chi.URLParam(r, "entityID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) entityHierarchy(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.GetEntityHierarchy(r.Context(), tenantID(r), r.URL.Query().Get("rootId"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, nodes)
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), tenantID(r), req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	var filter consolidation.PeriodFilter
	if raw := r.URL.Query().Get("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil {
			filter.Year = year
		}
	}
	filter.Status = consolidation.PeriodStatus(r.URL.Query().Get("status"))
	periods, err := h.service.GetPeriods(r.Context(), tenantID(r), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.GetPeriod(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) updatePeriodStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	period, err := h.service.UpdatePeriodStatus(r.Context(), tenantID(r), chi.URLParam(r, "periodID"),
		consolidation.PeriodStatus(req.Status), userID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) lockPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.LockPeriod(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), userID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) unlockPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.UnlockPeriod(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), userID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) setCurrencyRates(w http.ResponseWriter, r *http.Request) {
	var req setRatesRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	inputs := make([]consolidation.RateInput, 0, len(req.Rates))
	for _, row := range req.Rates {
		inputs = append(inputs, consolidation.RateInput{
			Currency:    row.Currency,
			Date:        row.Date,
			ClosingRate: row.ClosingRate,
			AverageRate: row.AverageRate,
		})
	}
	rates, err := h.service.SetCurrencyRates(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), inputs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}

func (h *Handler) listCurrencyRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.GetCurrencyRates(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}

func (h *Handler) setExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req setExchangeRateRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	rate, err := h.service.SetExchangeRate(r.Context(), tenantID(r), consolidation.ExchangeRateInput{
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Date:         req.Date,
		Rate:         req.Rate,
		RateType:     consolidation.RateType(req.RateType),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rate)
}

func (h *Handler) listExchangeRates(w http.ResponseWriter, r *http.Request) {
	filter := consolidation.ExchangeRateFilter{Currency: r.URL.Query().Get("currency")}
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		if t, err := time.Parse(time.DateOnly, raw); err == nil {
			filter.StartDate = t
		}
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		if t, err := time.Parse(time.DateOnly, raw); err == nil {
			filter.EndDate = t
		}
	}
	rates, err := h.service.GetExchangeRates(r.Context(), tenantID(r), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}

func (h *Handler) submitTrialBalance(w http.ResponseWriter, r *http.Request) {
	var req submitTrialBalanceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	tb, err := h.service.SubmitTrialBalance(r.Context(), tenantID(r),
		req.toInput(chi.URLParam(r, "entityID"), chi.URLParam(r, "periodID")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) getTrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.service.GetTrialBalance(r.Context(), tenantID(r),
		chi.URLParam(r, "entityID"), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) translateTrialBalance(w http.ResponseWriter, r *http.Request) {
	tb, err := h.service.TranslateTrialBalance(r.Context(), tenantID(r),
		chi.URLParam(r, "entityID"), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	txn, err := h.service.RecordIntercompanyTransaction(r.Context(), tenantID(r),
		req.toInput(chi.URLParam(r, "periodID")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter := consolidation.TransactionFilter{
		EntityID: r.URL.Query().Get("entityId"),
		Status:   consolidation.TransactionStatus(r.URL.Query().Get("status")),
		Type:     consolidation.TransactionType(r.URL.Query().Get("type")),
	}
	txns, err := h.service.GetIntercompanyTransactions(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) matchTransactions(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.MatchIntercompanyTransactions(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) createElimination(w http.ResponseWriter, r *http.Request) {
	var req createEliminationRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	entry, err := h.service.CreateEliminationEntry(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), req.toInput())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) listEliminations(w http.ResponseWriter, r *http.Request) {
	filter := consolidation.EntryFilter{Status: consolidation.EntryStatus(r.URL.Query().Get("status"))}
	entries, err := h.service.GetEliminationEntries(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) generateEliminations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.GenerateAutomaticEliminations(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) postElimination(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.PostEliminationEntry(r.Context(), tenantID(r), chi.URLParam(r, "entryID"), userID(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) deleteElimination(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEliminationEntry(r.Context(), tenantID(r), chi.URLParam(r, "entryID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) minorityInterest(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CalculateMinorityInterest(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) generateStatement(w http.ResponseWriter, r *http.Request) {
	var stype consolidation.StatementType
	switch chi.URLParam(r, "statementType") {
	case "balance-sheet":
		stype = consolidation.StatementBalanceSheet
	case "income-statement":
		stype = consolidation.StatementIncomeStatement
	case "cash-flow":
		stype = consolidation.StatementCashFlow
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown statement type")
		return
	}
	statement, err := h.service.GenerateConsolidatedStatement(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), stype)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, statement)
}

func (h *Handler) runConsolidation(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunConsolidation(r.Context(), tenantID(r), chi.URLParam(r, "periodID"), userID(r))
	if err != nil {
		// The run result carries the failed step detail; surface it with
		// the error status.
		httpx.JSON(w, http.StatusConflict, result)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) consolidationSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetConsolidationSummary(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) consolidationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetConsolidationStatus(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}

func (h *Handler) intercompanyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetIntercompanyReport(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) reconciliationReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetReconciliationReport(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) contributionReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GetEntityContributionReport(r.Context(), tenantID(r), chi.URLParam(r, "periodID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) comparePeriods(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	compare := r.URL.Query().Get("compare")
	if base == "" || compare == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "base and compare period ids required")
		return
	}
	cmp, err := h.service.GetPeriodComparison(r.Context(), tenantID(r), base, compare)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cmp)
}

func (h *Handler) auditTrail(w http.ResponseWriter, r *http.Request) {
	filter := consolidation.AuditTrailFilter{
		Entity:   r.URL.Query().Get("entity"),
		EntityID: r.URL.Query().Get("entityId"),
		Action:   r.URL.Query().Get("action"),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.Since = t
		}
	}
	logs, err := h.service.GetAuditTrail(r.Context(), tenantID(r), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}
