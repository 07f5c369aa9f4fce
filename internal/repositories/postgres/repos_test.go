package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestExpenseRepository_CreateIsIdempotentOnID(t *testing.T) {
	// ARRANGE
	pool := getTestPool(t)
	repo := NewExpenseRepository(pool)
	ctx := context.Background()
	userID := uuid.NewString()
	expense := newExpense(userID, 5000, "Food", models.NewDate(2024, time.March, 1))

	first, err := repo.Create(ctx, expense)
	require.NoError(t, err)

	// ACT: replay the same create
	replay := *expense
	replay.Description = "changed in flight"
	second, err := repo.Create(ctx, &replay)

	// ASSERT: one row, the original
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Description, second.Description)

	all, err := repo.FindByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExpenseRepository_OwnershipScoping(t *testing.T) {
	pool := getTestPool(t)
	repo := NewExpenseRepository(pool)
	ctx := context.Background()
	owner, other := uuid.NewString(), uuid.NewString()

	created, err := repo.Create(ctx, newExpense(owner, 100, "Food", models.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	// ACT / ASSERT: another user sees nothing and cannot touch the row
	_, err = repo.FindByID(ctx, other, created.ID)
	assert.True(t, apperr.IsNotFound(err))

	stolen := *created
	stolen.UserID = other
	_, err = repo.Update(ctx, &stolen)
	assert.True(t, apperr.IsNotFound(err))

	err = repo.Delete(ctx, other, created.ID)
	assert.True(t, apperr.IsNotFound(err))

	// the same id from a different user is not a second row
	_, err = repo.Create(ctx, &stolen)
	assert.True(t, apperr.IsNotFound(err))
}

func TestExpenseRepository_UpdateAndDelete(t *testing.T) {
	pool := getTestPool(t)
	repo := NewExpenseRepository(pool)
	ctx := context.Background()
	userID := uuid.NewString()

	created, err := repo.Create(ctx, newExpense(userID, 100, "Food", models.NewDate(2024, time.March, 1)))
	require.NoError(t, err)

	created.Amount = 250
	created.UpdatedAt = created.UpdatedAt.Add(time.Minute)
	updated, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, models.Money(250), updated.Amount)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	require.NoError(t, repo.Delete(ctx, userID, created.ID))
	err = repo.Delete(ctx, userID, created.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestExpenseRepository_Finders(t *testing.T) {
	pool := getTestPool(t)
	repo := NewExpenseRepository(pool)
	ctx := context.Background()
	userID := uuid.NewString()

	for _, e := range []*models.Expense{
		newExpense(userID, 100, "Food", models.NewDate(2024, time.January, 31)),
		newExpense(userID, 200, "Food", models.NewDate(2024, time.February, 1)),
		newExpense(userID, 300, "Rent", models.NewDate(2024, time.February, 29)),
		newExpense(userID, 400, "Food", models.NewDate(2024, time.March, 1)),
	} {
		_, err := repo.Create(ctx, e)
		require.NoError(t, err)
	}

	feb, err := repo.FindByDateRange(ctx, userID, models.NewDate(2024, time.February, 1), models.NewDate(2024, time.February, 29))
	require.NoError(t, err)
	assert.Len(t, feb, 2, "range is inclusive on both ends")

	food, err := repo.FindByCategory(ctx, userID, "Food")
	require.NoError(t, err)
	assert.Len(t, food, 3)
}

func TestLoanRepository_NullableDueDateAndStatus(t *testing.T) {
	pool := getTestPool(t)
	repo := NewLoanRepository(pool)
	ctx := context.Background()
	userID := uuid.NewString()
	due := models.NewDate(2024, time.June, 30)

	open := &models.Loan{
		Base: models.Base{UserID: userID}, ContactID: "c1", Direction: models.LoanGiven,
		PrincipalAmount: 10000, OutstandingAmount: 10000, Status: models.LoanActive,
		StartDate: models.NewDate(2024, time.January, 1), DueDate: &due,
	}
	paid := &models.Loan{
		Base: models.Base{UserID: userID}, ContactID: "c2", Direction: models.LoanTaken,
		PrincipalAmount: 500, OutstandingAmount: 0, Status: models.LoanPaid,
		StartDate: models.NewDate(2024, time.January, 1),
	}
	_, err := repo.Create(ctx, open)
	require.NoError(t, err)
	_, err = repo.Create(ctx, paid)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, userID, open.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.SameDay(due))

	active, err := repo.FindByStatus(ctx, userID, models.LoanActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)

	byContact, err := repo.FindByContact(ctx, userID, "c2")
	require.NoError(t, err)
	require.Len(t, byContact, 1)
	assert.Nil(t, byContact[0].DueDate)
}

func TestLoanPaymentRepository_FindByLoanID(t *testing.T) {
	pool := getTestPool(t)
	repo := NewLoanPaymentRepository(pool)
	ctx := context.Background()
	userID := uuid.NewString()

	for _, loanID := range []string{"l1", "l1", "l2"} {
		_, err := repo.Create(ctx, &models.LoanPayment{
			Base: models.Base{UserID: userID}, LoanID: loanID, Amount: 100, Date: models.NewDate(2024, time.May, 5),
		})
		require.NoError(t, err)
	}

	payments, err := repo.FindByLoanID(ctx, userID, "l1")
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestContactRepository_SearchByName(t *testing.T) {
	pool := getTestPool(t)
	repo := NewContactRepository(pool)
	ctx := context.Background()
	userID := uuid.NewString()

	for _, name := range []string{"Alice Smith", "Bob Jones", "alicia keys"} {
		_, err := repo.Create(ctx, &models.Contact{Base: models.Base{UserID: userID}, Name: name})
		require.NoError(t, err)
	}

	found, err := repo.SearchByName(ctx, userID, "ALIC")
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestProvisioner_Provision(t *testing.T) {
	pool := getTestPool(t)
	p := NewProvisioner(pool)
	ctx := context.Background()
	userID := uuid.NewString()

	require.NoError(t, p.Provision(ctx, userID))
	require.NoError(t, p.Provision(ctx, userID), "provisioning twice is harmless")

	var n int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenants WHERE user_id = $1`, userID).Scan(&n))
	assert.Equal(t, 1, n)
}

// Helper functions for test setup

// getTestPool starts a throwaway Postgres container with the backend schema.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcpostgres.WithDatabase("backend_b"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	require.NoError(t, NewProvisioner(pool).EnsureSchema(ctx))
	return pool
}

func newExpense(userID string, cents models.Money, category string, date models.Date) *models.Expense {
	return &models.Expense{
		Base:        models.Base{UserID: userID},
		Amount:      cents,
		Category:    category,
		Description: "test expense",
		Date:        date,
	}
}
