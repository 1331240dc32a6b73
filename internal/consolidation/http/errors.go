package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/consolidex/consolidex/internal/consolidation"
	"github.com/consolidex/consolidex/internal/platform/httpx"
)

// respondError maps domain sentinels onto the transport problem responses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, consolidation.ErrEntityNotFound),
		errors.Is(err, consolidation.ErrPeriodNotFound),
		errors.Is(err, consolidation.ErrTransactionNotFound),
		errors.Is(err, consolidation.ErrEntryNotFound),
		errors.Is(err, consolidation.ErrBalanceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, consolidation.ErrParentNotFound),
		errors.Is(err, consolidation.ErrValidation),
		errors.Is(err, consolidation.ErrOwnershipCycle):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, consolidation.ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, consolidation.ErrHasChildren),
		errors.Is(err, consolidation.ErrInvalidTransition),
		errors.Is(err, consolidation.ErrEntryUnbalanced),
		errors.Is(err, consolidation.ErrAlreadyPosted),
		errors.Is(err, consolidation.ErrEntryPosted):
		httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, consolidation.ErrPeriodLocked):
		httpx.Problem(w, http.StatusConflict, "Locked", err.Error())
	default:
		h.logger.Error("unhandled consolidation error",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
