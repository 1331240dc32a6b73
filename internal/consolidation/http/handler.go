// Package http exposes the consolidation engine as a JSON API.
package http

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/consolidex/consolidex/internal/consolidation"
	"github.com/consolidex/consolidex/internal/platform/httpx"
)

// Handler wires HTTP interactions for the consolidation engine.
type Handler struct {
	logger    *slog.Logger
	service   *consolidation.Service
	rateLimit func(http.Handler) http.Handler
}

// NewHandler constructs the handler. Expensive generation endpoints share a
// per-client rate limit.
func NewHandler(logger *slog.Logger, service *consolidation.Service) *Handler {
	limiter := httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		if tenant := tenantID(r); tenant != "default" {
			return "tenant:" + tenant, nil
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{logger: logger, service: service, rateLimit: limiter}
}

// tenantID resolves the calling tenant. Single-tenant deployments omit the
// header and share the default spine.
func tenantID(r *http.Request) string {
	if tenant := strings.TrimSpace(r.Header.Get("X-Tenant-ID")); tenant != "" {
		return tenant
	}
	return "default"
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

// MountRoutes registers the consolidation endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/entities", func(r chi.Router) {
		r.Post("/", h.createEntity)
		r.Get("/", h.listEntities)
		r.Get("/hierarchy", h.entityHierarchy)
		r.Get("/{entityID}", h.getEntity)
		r.Put("/{entityID}", h.updateEntity)
		r.Delete("/{entityID}", h.deleteEntity)
	})

	r.Route("/periods", func(r chi.Router) {
		r.Post("/", h.createPeriod)
		r.Get("/", h.listPeriods)
		r.Get("/compare", h.comparePeriods)
		r.Route("/{periodID}", func(r chi.Router) {
			r.Get("/", h.getPeriod)
			r.Post("/status", h.updatePeriodStatus)
			r.Post("/lock", h.lockPeriod)
			r.Post("/unlock", h.unlockPeriod)

			r.Put("/rates", h.setCurrencyRates)
			r.Get("/rates", h.listCurrencyRates)

			r.Put("/entities/{entityID}/trial-balance", h.submitTrialBalance)
			r.Get("/entities/{entityID}/trial-balance", h.getTrialBalance)
			r.Get("/entities/{entityID}/trial-balance/translated", h.translateTrialBalance)

			r.Post("/intercompany", h.recordTransaction)
			r.Get("/intercompany", h.listTransactions)
			r.Post("/intercompany/match", h.matchTransactions)

			r.Post("/eliminations", h.createElimination)
			r.Get("/eliminations", h.listEliminations)
			r.Post("/eliminations/generate", h.generateEliminations)

			r.Get("/minority-interest", h.minorityInterest)

			r.Group(func(r chi.Router) {
				r.Use(h.rateLimit)
				r.Get("/statements/{statementType}", h.generateStatement)
				r.Post("/run", h.runConsolidation)
			})

			r.Get("/summary", h.consolidationSummary)
			r.Get("/status-report", h.consolidationStatus)
			r.Get("/intercompany-report", h.intercompanyReport)
			r.Get("/reconciliation", h.reconciliationReport)
			r.Get("/contributions", h.contributionReport)
		})
	})

	r.Route("/eliminations/{entryID}", func(r chi.Router) {
		r.Post("/post", h.postElimination)
		r.Delete("/", h.deleteElimination)
	})

	r.Post("/rates", h.setExchangeRate)
	r.Get("/rates", h.listExchangeRates)
	r.Get("/rules", h.listRules)
	r.Get("/audit", h.auditTrail)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Rules())
}
