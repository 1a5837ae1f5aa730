package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/achievement"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	mem := memory.New()
	logger := log.New(log.DefaultConfig())

	transactions := services.NewTransactionService(mem, nil)
	budgets := services.NewBudgetService(mem, mem, nil)
	achievements := services.NewAchievementService(mem, mem, mem, nil)

	s := NewServer(":0", logger, transactions, budgets, achievements)
	t.Cleanup(func() { s.cacheManager.Stop(); s.rateLimiter.stop() })
	return s, mem
}

func doJSON(t *testing.T, s *Server, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndListTransactions(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", "user-1",
		`{"amount":"42.50","description":"groceries","category":"Food","date":"2024-01-15","is_expense":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "42.5", created.Amount)
	assert.NotZero(t, created.CreatedAt)

	rec = doJSON(t, s, http.MethodGet, "/api/transactions", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)

	// Another user sees an empty ledger.
	rec = doJSON(t, s, http.MethodGet, "/api/transactions", "user-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Empty(t, listed)
}

func TestCreateTransaction_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed json", `{not json`, http.StatusBadRequest},
		{"bad amount", `{"amount":"abc","description":"x","category":"Other","date":"2024-01-15"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"amount":"-5","description":"x","category":"Other","date":"2024-01-15"}`, http.StatusUnprocessableEntity},
		{"empty description", `{"amount":"5","description":"","category":"Other","date":"2024-01-15"}`, http.StatusUnprocessableEntity},
		{"bad date", `{"amount":"5","description":"x","category":"Other","date":"15/01/2024"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/transactions", "user-1", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestMissingUser(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/transactions", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeleteTransaction(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", "user-1",
		`{"amount":"10","description":"bus","category":"Transportation","date":"2024-01-15","is_expense":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, s, http.MethodPut, "/api/transactions/"+created.ID, "user-1",
		`{"amount":"12","description":"train","category":"Transportation","date":"2024-01-16","is_expense":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/"+created.ID, "user-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/"+created.ID, "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBudgetEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/budget", "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "no budget yet")

	rec = doJSON(t, s, http.MethodGet, "/api/budget/status", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No budget set")

	rec = doJSON(t, s, http.MethodPut, "/api/budget", "user-1", `{"min":"100","max":"500"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/api/budget", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var b budgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "100", b.Min)
	assert.Equal(t, "500", b.Max)

	rec = doJSON(t, s, http.MethodPut, "/api/budget", "user-1", `{"min":"500","max":"100"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/budget/status", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Under Budget", "no spending this month")
}

func TestAchievementEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/achievements", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var progress []achievementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Len(t, progress, len(achievement.Catalog()))
	for _, a := range progress {
		assert.False(t, a.Earned)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/transactions", "user-1",
		`{"amount":"42.50","description":"groceries","category":"Food","date":"2024-01-15","is_expense":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/achievements/evaluate", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var earned []earnedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &earned))
	require.NotEmpty(t, earned)
	assert.Equal(t, achievement.FirstTransaction, earned[0].Name)

	// Second evaluation earns nothing new.
	rec = doJSON(t, s, http.MethodPost, "/api/achievements/evaluate", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &earned))
	assert.Empty(t, earned)
}

func TestAwardEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/achievements/award", "user-1",
		`{"name":"`+achievement.ExpenseAnalyzer+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var earned earnedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &earned))
	assert.Equal(t, achievement.ExpenseAnalyzer, earned.Name)
	assert.NotEmpty(t, earned.DateEarned)

	rec = doJSON(t, s, http.MethodPost, "/api/achievements/award", "user-1", `{"name":"Bogus"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Threshold-based achievements cannot be earned by direct award.
	rec = doJSON(t, s, http.MethodPost, "/api/achievements/award", "user-1",
		`{"name":"`+achievement.TenTransactions+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/api/achievements/award", "user-1", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteInvalidatesSummaryForTransactionMonth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", "user-1",
		`{"amount":"100","description":"rent","category":"Housing","date":"2024-01-05","is_expense":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Warm the cache for the month the transaction belongs to.
	rec = doJSON(t, s, http.MethodGet, "/api/summary?year=2024&month=1", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.Transactions)

	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/"+created.ID, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/summary?year=2024&month=1", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.Transactions, "the deleted transaction's month is re-read, not served stale")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	// A path probe bumps the suspicious counter.
	rec := doJSON(t, s, http.MethodGet, "/api/transactions?file=../../etc/passwd", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "rate_limit_hits_total 0")
	assert.Contains(t, body, "suspicious_requests_total 1")
	assert.Contains(t, body, `cache_entries{type="summary"}`)
	assert.Contains(t, body, "uptime_seconds")
}

func TestSummaryEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{
		`{"amount":"300","description":"rent","category":"Housing","date":"2024-01-05","is_expense":true}`,
		`{"amount":"200","description":"food","category":"Food","date":"2024-01-20","is_expense":true}`,
		`{"amount":"2000","description":"salary","category":"Salary","date":"2024-01-01","is_expense":false}`,
	} {
		rec := doJSON(t, s, http.MethodPost, "/api/transactions", "user-1", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/summary?year=2024&month=1", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2024, summary.Year)
	assert.Equal(t, 1, summary.Month)
	assert.Equal(t, 3, summary.Transactions)
	assert.Equal(t, "500", summary.Expenses)
	assert.Equal(t, "2000", summary.Income)
	assert.Equal(t, "1500", summary.NetSavings)
	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "Housing", summary.ByCategory[0].Category)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodDelete, "/api/budget", "user-1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/achievements/evaluate", "user-1", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
