package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/consolidex/consolidex/internal/consolidation"
	"github.com/consolidex/consolidex/internal/shared"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := consolidation.NewService(
		consolidation.NewMemoryStores().Stores(),
		shared.NewPeriodLocks(),
		shared.NewMemoryAuditRecorder(),
		logger,
	)
	r := chi.NewRouter()
	NewHandler(logger, service).MountRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, tenant string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	req.Header.Set("X-User-ID", "tester")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func entityPayload(code string) map[string]any {
	return map[string]any{
		"code":                code,
		"name":                code + " Holding",
		"type":                "HOLDING",
		"ownershipPercentage": 100,
		"consolidationMethod": "FULL",
		"functionalCurrency":  "USD",
		"reportingCurrency":   "USD",
		"translationMethod":   "CURRENT_RATE",
	}
}

func periodPayload() map[string]any {
	return map[string]any{
		"name":      "FY2026 Q2",
		"year":      2026,
		"period":    2,
		"type":      "QUARTERLY",
		"startDate": "2026-04-01T00:00:00Z",
		"endDate":   "2026-06-30T00:00:00Z",
	}
}

func TestCreateEntityEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/entities", "", entityPayload("HOLDCO"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entity consolidation.LegalEntity
	decodeBody(t, resp, &entity)
	require.NotEmpty(t, entity.ID)
	require.Equal(t, "HOLDCO", entity.Code)

	resp = doJSON(t, srv, http.MethodPost, "/entities", "", entityPayload("HOLDCO"))
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreateEntityValidation(t *testing.T) {
	srv := newTestServer(t)

	payload := entityPayload("BAD")
	payload["functionalCurrency"] = "DOLLARS"
	resp := doJSON(t, srv, http.MethodPost, "/entities", "", payload)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/entities", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	raw, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestGetEntityNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, srv, http.MethodGet, "/entities/nope", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTenantIsolation(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/entities", "acme", entityPayload("HOLDCO"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entity consolidation.LegalEntity
	decodeBody(t, resp, &entity)

	resp = doJSON(t, srv, http.MethodGet, "/entities/"+entity.ID, "globex", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "other tenants must not see the entity")

	resp = doJSON(t, srv, http.MethodGet, "/entities/"+entity.ID, "acme", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPeriodStatusTransitions(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/periods", "", periodPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var period consolidation.ConsolidationPeriod
	decodeBody(t, resp, &period)
	require.Equal(t, consolidation.PeriodDraft, period.Status)

	statusPath := fmt.Sprintf("/periods/%s/status", period.ID)
	resp = doJSON(t, srv, http.MethodPost, statusPath, "", map[string]any{"status": "REVIEW"})
	require.Equal(t, http.StatusConflict, resp.StatusCode, "skipping IN_PROGRESS is refused")

	resp = doJSON(t, srv, http.MethodPost, statusPath, "", map[string]any{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &period)
	require.Equal(t, consolidation.PeriodInProgress, period.Status)
}

func TestStatementEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/entities", "", entityPayload("HOLDCO"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entity consolidation.LegalEntity
	decodeBody(t, resp, &entity)

	resp = doJSON(t, srv, http.MethodPost, "/periods", "", periodPayload())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var period consolidation.ConsolidationPeriod
	decodeBody(t, resp, &period)

	tbPath := fmt.Sprintf("/periods/%s/entities/%s/trial-balance", period.ID, entity.ID)
	resp = doJSON(t, srv, http.MethodPut, tbPath, "", map[string]any{
		"entries": []map[string]any{
			{"accountCode": "1000", "accountName": "Cash", "debit": 1000},
			{"accountCode": "5000", "accountName": "Share Capital", "credit": 700},
			{"accountCode": "7000", "accountName": "Revenue", "credit": 500},
			{"accountCode": "6000", "accountName": "Operating Expenses", "debit": 200},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/periods/%s/statements/balance-sheet", period.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st consolidation.ConsolidatedStatement
	decodeBody(t, resp, &st)
	require.Equal(t, consolidation.StatementBalanceSheet, st.Type)
	require.Equal(t, 1000.0, st.Totals["totalAssets"])
	require.Equal(t, 1000.0, st.Totals["totalEquity"])

	resp = doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/periods/%s/statements/profit-and-loss", period.ID), "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunEndpointReportsFailure(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, srv, http.MethodPost, "/periods/no-such-period/run", "", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	var result consolidation.RunResult
	decodeBody(t, resp, &result)
	require.Equal(t, consolidation.RunFailed, result.Status)
	require.NotEmpty(t, result.Steps)
}

func TestListRulesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, srv, http.MethodGet, "/rules", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rules []consolidation.ConsolidationRule
	decodeBody(t, resp, &rules)
	require.Len(t, rules, 3)
}
