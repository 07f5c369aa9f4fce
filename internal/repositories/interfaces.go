package repositories

import (
	"context"
	"fmt"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

// Repository is the contract every backend implements for every entity type.
// All calls are scoped to the owning user; rows owned by someone else behave
// as if they did not exist.
type Repository[T models.Entity] interface {
	FindByUserID(ctx context.Context, userID string) ([]T, error)
	FindByID(ctx context.Context, userID, id string) (T, error)
	// Create is idempotent on the entity id: re-creating an id the user
	// already owns returns the stored record.
	Create(ctx context.Context, entity T) (T, error)
	Update(ctx context.Context, entity T) (T, error)
	Delete(ctx context.Context, userID, id string) error
}

type ExpenseRepository interface {
	Repository[*models.Expense]
	FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Expense, error)
	FindByCategory(ctx context.Context, userID, category string) ([]*models.Expense, error)
}

type IncomeRepository interface {
	Repository[*models.Income]
	FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Income, error)
}

type CategoryRepository interface {
	Repository[*models.Category]
	SearchByName(ctx context.Context, userID, query string) ([]*models.Category, error)
}

type BudgetRepository interface {
	Repository[*models.Budget]
	FindByCategory(ctx context.Context, userID, category string) ([]*models.Budget, error)
}

type ContactRepository interface {
	Repository[*models.Contact]
	SearchByName(ctx context.Context, userID, query string) ([]*models.Contact, error)
}

type LoanRepository interface {
	Repository[*models.Loan]
	FindByStatus(ctx context.Context, userID string, status models.LoanStatus) ([]*models.Loan, error)
	FindByContact(ctx context.Context, userID, contactID string) ([]*models.Loan, error)
}

type LoanPaymentRepository interface {
	Repository[*models.LoanPayment]
	FindByLoanID(ctx context.Context, userID, loanID string) ([]*models.LoanPayment, error)
}

// Provisioner prepares a backend to host a user's data.
type Provisioner interface {
	Provision(ctx context.Context, userID string) error
}

// Set is the full repository set of one backend. Handlers receive a Set from
// the router and never look at Backend to decide behavior.
type Set struct {
	Backend      models.Backend
	Provisioner  Provisioner
	Expenses     ExpenseRepository
	Incomes      IncomeRepository
	Categories   CategoryRepository
	Budgets      BudgetRepository
	Contacts     ContactRepository
	Loans        LoanRepository
	LoanPayments LoanPaymentRepository
}

// Store is a Repository with the entity type erased, used where the type is
// only known at runtime (REST collections).
type Store interface {
	FindByUserID(ctx context.Context, userID string) ([]models.Entity, error)
	FindByID(ctx context.Context, userID, id string) (models.Entity, error)
	Create(ctx context.Context, entity models.Entity) (models.Entity, error)
	Update(ctx context.Context, entity models.Entity) (models.Entity, error)
	Delete(ctx context.Context, userID, id string) error
}

// Store returns the type-erased repository for t.
func (s *Set) Store(t models.EntityType) (Store, error) {
	switch t {
	case models.EntityExpense:
		return erase[*models.Expense](s.Expenses), nil
	case models.EntityIncome:
		return erase[*models.Income](s.Incomes), nil
	case models.EntityCategory:
		return erase[*models.Category](s.Categories), nil
	case models.EntityBudget:
		return erase[*models.Budget](s.Budgets), nil
	case models.EntityContact:
		return erase[*models.Contact](s.Contacts), nil
	case models.EntityLoan:
		return erase[*models.Loan](s.Loans), nil
	case models.EntityLoanPayment:
		return erase[*models.LoanPayment](s.LoanPayments), nil
	}
	return nil, fmt.Errorf("no repository for entity type %q", t)
}

type erased[T models.Entity] struct {
	repo Repository[T]
}

func erase[T models.Entity](repo Repository[T]) Store {
	return erased[T]{repo: repo}
}

func (e erased[T]) FindByUserID(ctx context.Context, userID string) ([]models.Entity, error) {
	found, err := e.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Entities(found), nil
}

func (e erased[T]) FindByID(ctx context.Context, userID, id string) (models.Entity, error) {
	found, err := e.repo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (e erased[T]) Create(ctx context.Context, entity models.Entity) (models.Entity, error) {
	typed, ok := entity.(T)
	if !ok {
		return nil, apperr.NewValidationError(fmt.Sprintf("unexpected entity type %s", entity.EntityType()))
	}
	stored, err := e.repo.Create(ctx, typed)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (e erased[T]) Update(ctx context.Context, entity models.Entity) (models.Entity, error) {
	typed, ok := entity.(T)
	if !ok {
		return nil, apperr.NewValidationError(fmt.Sprintf("unexpected entity type %s", entity.EntityType()))
	}
	stored, err := e.repo.Update(ctx, typed)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (e erased[T]) Delete(ctx context.Context, userID, id string) error {
	return e.repo.Delete(ctx, userID, id)
}

// Entities converts a typed slice to []models.Entity.
func Entities[T models.Entity](in []T) []models.Entity {
	out := make([]models.Entity, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	return out
}

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

type AssignmentRepository interface {
	// Create stores a if the user has no assignment yet and returns the
	// assignment that is stored afterwards, which may be an older one.
	Create(ctx context.Context, a *models.DatabaseAssignment) (*models.DatabaseAssignment, error)
	GetByUserID(ctx context.Context, userID string) (*models.DatabaseAssignment, error)
	CountByBackend(ctx context.Context) (map[models.Backend]int64, error)
}

// IdempotencyRepository remembers which record a client-supplied
// Idempotency-Key produced.
type IdempotencyRepository interface {
	Lookup(ctx context.Context, userID, key string) (*models.IdempotencyRecord, error)
	Save(ctx context.Context, userID, key string, rec *models.IdempotencyRecord) error
}
