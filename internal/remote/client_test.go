package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_CreateUsesPostAndIdempotencyKey(t *testing.T) {
	// ARRANGE
	var gotMethod, gotPath, gotKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotKey, gotAuth = r.Header.Get("Idempotency-Key"), r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	c := New(srv.URL, "tok", time.Second, zerolog.Nop())

	// ACT
	e, err := c.Send(context.Background(), &models.QueueItem{
		Action: models.ActionCreate, EntityType: models.EntityLoanPayment, LocalID: "p1",
		Payload: json.RawMessage(`{"id":"p1","loanId":"l1","amount":5,"date":"2024-01-01"}`),
	})

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/loan-payments", gotPath)
	assert.Equal(t, "create:p1", gotKey)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "p1", e.GetID())
}

func TestSend_UpdateAndDeleteAddressRemoteID(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(`{"id":"srv-1"}`))
	}))
	defer srv.Close()
	c := New(srv.URL, "", time.Second, zerolog.Nop())
	ctx := context.Background()

	_, err := c.Send(ctx, &models.QueueItem{Action: models.ActionUpdate, EntityType: models.EntityExpense, LocalID: "loc-1", RemoteID: "srv-1", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	e, err := c.Send(ctx, &models.QueueItem{Action: models.ActionDelete, EntityType: models.EntityExpense, LocalID: "loc-1"})
	require.NoError(t, err)

	assert.Nil(t, e)
	assert.Equal(t, []string{"PUT /api/expenses/srv-1", "DELETE /api/expenses/loc-1"}, paths)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status     int
		body       string
		validation bool
		notFound   bool
		transport  bool
	}{
		{status: 400, validation: true},
		{status: 422, body: `{"errors":["amount must be greater than zero"]}`, validation: true},
		{status: 404, notFound: true},
		{status: 403, notFound: true},
		{status: 500, transport: true},
		{status: 503, transport: true},
		{status: 408, transport: true},
		{status: 429, transport: true},
	}
	for _, tt := range tests {
		err := classify("op", tt.status, []byte(tt.body))
		assert.Equal(t, tt.validation, apperr.IsValidationError(err), "status %d", tt.status)
		assert.Equal(t, tt.notFound, apperr.IsNotFound(err), "status %d", tt.status)
		assert.Equal(t, tt.transport, apperr.IsTransportError(err), "status %d", tt.status)
	}

	var v *apperr.ValidationError
	require.ErrorAs(t, classify("op", 422, []byte(`{"errors":["a","b"]}`)), &v)
	assert.Equal(t, []string{"a", "b"}, v.Errors)
}

func TestSend_TimeoutIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	c := New(srv.URL, "", 50*time.Millisecond, zerolog.Nop())

	_, err := c.Send(context.Background(), &models.QueueItem{Action: models.ActionDelete, EntityType: models.EntityExpense, LocalID: "x"})

	assert.True(t, apperr.IsTransportError(err))
	assert.True(t, apperr.Retryable(err))
}

func TestSend_UnreachableIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(url, "", time.Second, zerolog.Nop())

	_, err := c.Send(context.Background(), &models.QueueItem{Action: models.ActionDelete, EntityType: models.EntityExpense, LocalID: "x"})

	assert.True(t, apperr.IsTransportError(err))
}

func TestFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/contacts", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"c1","name":"Ann"},{"id":"c2","name":"Bo"}]`))
	}))
	defer srv.Close()
	c := New(srv.URL, "", time.Second, zerolog.Nop())

	got, err := c.FetchAll(context.Background(), models.EntityContact)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ann", got[0].(*models.Contact).Name)
}
