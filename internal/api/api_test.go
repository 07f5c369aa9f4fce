package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories/memory"
	"github.com/prudhvinik1/ledgersync/internal/router"
	"github.com/prudhvinik1/ledgersync/internal/services"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccount(t *testing.T) {
	// ARRANGE
	srv, _ := newTestServer(t)

	// ACT
	resp := do(t, srv, http.MethodPost, "/api/accounts", "", map[string]string{"email": "a@example.com"}, nil)

	// ASSERT
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body services.AccountResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, models.BackendA, body.Backend)
	assert.NotEmpty(t, body.Token)
}

func TestCurrentAccount(t *testing.T) {
	srv, tokens := newTestServer(t)
	token := signUp(t, srv, "me@example.com")

	resp := do(t, srv, http.MethodGet, "/api/accounts/me", token, nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body services.AccountResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "me@example.com", body.Account.Email)
	assert.Equal(t, models.BackendA, body.Backend)
	assert.Empty(t, body.Token)

	stranger, _, err := tokens.IssueToken("never-registered")
	require.NoError(t, err)
	resp = do(t, srv, http.MethodGet, "/api/accounts/me", stranger, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCollections_RequireToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/expenses", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/expenses", "garbage", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpense_CRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "crud@example.com")

	// create
	resp := do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"id": "exp-1", "amount": 12.5, "category": "Food", "description": "lunch", "date": "2024-03-01",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Expense
	decodeBody(t, resp, &created)
	assert.Equal(t, "exp-1", created.ID)
	assert.Equal(t, models.Money(1250), created.Amount)

	// update
	resp = do(t, srv, http.MethodPut, "/api/expenses/exp-1", token, map[string]any{
		"amount": "13.00", "category": "Food", "description": "lunch", "date": "2024-03-01",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Expense
	decodeBody(t, resp, &updated)
	assert.Equal(t, models.Money(1300), updated.Amount)

	// get
	resp = do(t, srv, http.MethodGet, "/api/expenses/exp-1", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// delete, then gone
	resp = do(t, srv, http.MethodDelete, "/api/expenses/exp-1", token, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, srv, http.MethodGet, "/api/expenses/exp-1", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, srv, http.MethodDelete, "/api/expenses/exp-1", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreate_ValidationIs422(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "v@example.com")

	resp := do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{"amount": -1, "date": "2024-03-01"}, nil)

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body errorBody
	decodeBody(t, resp, &body)
	assert.NotEmpty(t, body.Errors)
}

func TestUnknownCollectionIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "c@example.com")

	resp := do(t, srv, http.MethodGet, "/api/widgets", token, nil, nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserWithoutAssignmentIs409(t *testing.T) {
	srv, tokens := newTestServer(t)
	token, _, err := tokens.IssueToken("never-registered")
	require.NoError(t, err)

	resp := do(t, srv, http.MethodGet, "/api/expenses", token, nil, nil)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCreate_IdempotencyKeyReplay(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "idem@example.com")
	body := map[string]any{"amount": 5, "source": "Salary", "date": "2024-03-01"}
	headers := map[string]string{"Idempotency-Key": "k-1"}

	first := do(t, srv, http.MethodPost, "/api/incomes", token, body, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	second := do(t, srv, http.MethodPost, "/api/incomes", token, body, headers)
	require.Equal(t, http.StatusOK, second.StatusCode)

	var a, b models.Income
	decodeBody(t, first, &a)
	decodeBody(t, second, &b)
	assert.Equal(t, a.ID, b.ID)

	resp := do(t, srv, http.MethodGet, "/api/incomes", token, nil, nil)
	var all []models.Income
	decodeBody(t, resp, &all)
	assert.Len(t, all, 1)
}

func TestCreate_ReplayByIDDoesNotDuplicate(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "replay@example.com")
	body := map[string]any{"id": "inc-1", "amount": 5, "source": "Salary", "date": "2024-03-01"}

	for i := 0; i < 3; i++ {
		resp := do(t, srv, http.MethodPost, "/api/incomes", token, body, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := do(t, srv, http.MethodGet, "/api/incomes", token, nil, nil)
	var all []models.Income
	decodeBody(t, resp, &all)
	assert.Len(t, all, 1)
}

func TestList_Finders(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "find@example.com")
	for _, d := range []string{"2024-01-31", "2024-02-01", "2024-02-29", "2024-03-01"} {
		resp := do(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{"amount": 1, "category": "Food", "date": d}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := do(t, srv, http.MethodGet, "/api/expenses?from=2024-02-01&to=2024-02-29", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feb []models.Expense
	decodeBody(t, resp, &feb)
	assert.Len(t, feb, 2)

	resp = do(t, srv, http.MethodGet, "/api/expenses?from=2024-02-01", token, nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestList_EmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "empty@example.com")

	resp := do(t, srv, http.MethodGet, "/api/budgets", token, nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw json.RawMessage
	decodeBody(t, resp, &raw)
	assert.JSONEq(t, "[]", string(raw))
}

// TestLoanPayment_ServerRecomputesLoan checks that the loan reflects its
// payments after each payment mutation.
func TestLoanPayment_ServerRecomputesLoan(t *testing.T) {
	srv, _ := newTestServer(t)
	token := signUp(t, srv, "loan@example.com")

	resp := do(t, srv, http.MethodPost, "/api/loans", token, map[string]any{
		"id": "loan-1", "contactId": "c1", "direction": "given", "principalAmount": 100,
		"outstandingAmount": 100, "startDate": "2024-01-01",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/loan-payments", token, map[string]any{
		"id": "p-1", "loanId": "loan-1", "amount": 100, "date": "2024-02-01",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.LoanPaid, getLoan(t, srv, token).Status)

	resp = do(t, srv, http.MethodPut, "/api/loan-payments/p-1", token, map[string]any{
		"loanId": "loan-1", "amount": 40, "date": "2024-02-01",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	loan := getLoan(t, srv, token)
	assert.Equal(t, models.Money(6000), loan.OutstandingAmount)
	assert.Equal(t, models.LoanActive, loan.Status)

	resp = do(t, srv, http.MethodDelete, "/api/loan-payments/p-1", token, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, models.Money(10000), getLoan(t, srv, token).OutstandingAmount)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/metrics", "", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Helper functions for test setup

func newTestServer(t *testing.T) (*httptest.Server, *services.TokenService) {
	t.Helper()
	logger := zerolog.Nop()
	r, err := router.New(memory.NewAssignmentRepository(), logger, memory.NewSet(models.BackendA), memory.NewSet(models.BackendB))
	require.NoError(t, err)
	tokens := services.NewTokenService("test-secret", time.Hour)

	handler := NewHandler(Deps{
		Repositories: r,
		Accounts:     services.NewAccountService(memory.NewAccountRepository(), r, tokens, logger),
		Loans:        services.NewLoanService(r, logger),
		Tokens:       tokens,
		Idempotency:  memory.NewIdempotencyRepository(),
		Logger:       logger,
		Registry:     prometheus.NewRegistry(),
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func signUp(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/api/accounts", "", map[string]string{"email": email}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body services.AccountResponse
	decodeBody(t, resp, &body)
	return body.Token
}

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func getLoan(t *testing.T, srv *httptest.Server, token string) models.Loan {
	t.Helper()
	resp := do(t, srv, http.MethodGet, "/api/loans/loan-1", token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loan models.Loan
	decodeBody(t, resp, &loan)
	return loan
}
