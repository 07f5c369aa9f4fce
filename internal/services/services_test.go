package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories/memory"
	"github.com/prudhvinik1/ledgersync/internal/router"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)

	token, expiresAt, err := tokens.IssueToken("user-1")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	userID, err := tokens.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokenService_RejectsForeignAndExpiredTokens(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)

	foreign, _, err := NewTokenService("other", time.Hour).IssueToken("user-1")
	require.NoError(t, err)
	_, err = tokens.VerifyToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, _, err := NewTokenService("secret", -time.Minute).IssueToken("user-1")
	require.NoError(t, err)
	_, err = tokens.VerifyToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.VerifyToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccountService_Create(t *testing.T) {
	// ARRANGE
	svc, accounts, r, _, _ := newTestAccountService(t)
	ctx := context.Background()

	// ACT
	resp, err := svc.Create(ctx, " Alice@Example.com")

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", resp.Account.Email)
	assert.Equal(t, models.BackendA, resp.Backend)
	assert.NotEmpty(t, resp.Token)

	_, err = accounts.GetByID(ctx, resp.Account.ID)
	require.NoError(t, err)
	backend, err := r.Resolve(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BackendA, backend)

	current, err := svc.Get(ctx, resp.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Account.Email, current.Account.Email)
	assert.Equal(t, models.BackendA, current.Backend)
	assert.Empty(t, current.Token)
}

func TestAccountService_RejectsBadAndDuplicateEmail(t *testing.T) {
	svc, _, _, _, _ := newTestAccountService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "not-an-email")
	assert.True(t, apperr.IsValidationError(err))

	_, err = svc.Create(ctx, "bob@example.com")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "BOB@example.com")
	assert.True(t, apperr.IsValidationError(err))
}

// TestAccountService_RollsBackWhenNoBackend checks that a failed assignment
// leaves no account behind.
func TestAccountService_RollsBackWhenNoBackend(t *testing.T) {
	svc, accounts, _, provA, provB := newTestAccountService(t)
	ctx := context.Background()
	provA.SetUnavailable(true)
	provB.SetUnavailable(true)

	_, err := svc.Create(ctx, "carol@example.com")

	require.Error(t, err)
	assert.True(t, apperr.IsAssignmentError(err))
	_, err = accounts.GetByEmail(ctx, "carol@example.com")
	assert.True(t, apperr.IsNotFound(err))
}

func TestLoanService_RecomputeFromPayments(t *testing.T) {
	// ARRANGE
	svc, _, r, _, _ := newTestAccountService(t)
	ctx := context.Background()
	resp, err := svc.Create(ctx, "dave@example.com")
	require.NoError(t, err)
	userID := resp.Account.ID
	set, err := r.RepositoriesFor(ctx, userID)
	require.NoError(t, err)

	loan, err := set.Loans.Create(ctx, &models.Loan{
		Base: models.Base{UserID: userID}, ContactID: "c1", Direction: models.LoanGiven,
		PrincipalAmount: 10000, OutstandingAmount: 10000, Status: models.LoanActive,
		StartDate: models.NewDate(2024, time.January, 1),
	})
	require.NoError(t, err)
	for _, amount := range []models.Money{4000, 6000} {
		_, err := set.LoanPayments.Create(ctx, &models.LoanPayment{
			Base: models.Base{UserID: userID}, LoanID: loan.ID, Amount: amount, Date: models.NewDate(2024, time.February, 1),
		})
		require.NoError(t, err)
	}

	// ACT
	loans := NewLoanService(r, zerolog.Nop())
	got, err := loans.Recompute(ctx, userID, loan.ID)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, models.Money(0), got.OutstandingAmount)
	assert.Equal(t, models.LoanPaid, got.Status)

	stored, err := set.Loans.FindByID(ctx, userID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanPaid, stored.Status)
}

// Helper functions for test setup

func newTestAccountService(t *testing.T) (*AccountService, *memory.AccountRepository, *router.Router, *memory.Provisioner, *memory.Provisioner) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	setA, setB := memory.NewSet(models.BackendA), memory.NewSet(models.BackendB)
	r, err := router.New(memory.NewAssignmentRepository(), zerolog.Nop(), setA, setB)
	require.NoError(t, err)
	svc := NewAccountService(accounts, r, NewTokenService("secret", time.Hour), zerolog.Nop())
	return svc, accounts, r, setA.Provisioner.(*memory.Provisioner), setB.Provisioner.(*memory.Provisioner)
}
