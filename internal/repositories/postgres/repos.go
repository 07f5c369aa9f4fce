package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
)

type ExpenseRepository struct {
	table[models.Expense, *models.Expense]
}

func NewExpenseRepository(pool *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{table[models.Expense, *models.Expense]{
		pool:    pool,
		name:    "expenses",
		entity:  models.EntityExpense,
		columns: []string{"amount_cents", "category", "description", "date", "payment_method"},
		values: func(e *models.Expense) []any {
			return []any{e.Amount, e.Category, e.Description, e.Date, e.PaymentMethod}
		},
		now: time.Now,
	}}
}

// FindByDateRange is inclusive on both ends.
func (r *ExpenseRepository) FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Expense, error) {
	return r.where(ctx, "date BETWEEN $2 AND $3", userID, from, to)
}

func (r *ExpenseRepository) FindByCategory(ctx context.Context, userID, category string) ([]*models.Expense, error) {
	return r.where(ctx, "category = $2", userID, category)
}

type IncomeRepository struct {
	table[models.Income, *models.Income]
}

func NewIncomeRepository(pool *pgxpool.Pool) *IncomeRepository {
	return &IncomeRepository{table[models.Income, *models.Income]{
		pool:    pool,
		name:    "incomes",
		entity:  models.EntityIncome,
		columns: []string{"amount_cents", "source", "description", "date"},
		values: func(e *models.Income) []any {
			return []any{e.Amount, e.Source, e.Description, e.Date}
		},
		now: time.Now,
	}}
}

func (r *IncomeRepository) FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Income, error) {
	return r.where(ctx, "date BETWEEN $2 AND $3", userID, from, to)
}

type CategoryRepository struct {
	table[models.Category, *models.Category]
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{table[models.Category, *models.Category]{
		pool:    pool,
		name:    "categories",
		entity:  models.EntityCategory,
		columns: []string{"name", "kind", "color"},
		values: func(e *models.Category) []any {
			return []any{e.Name, e.Kind, e.Color}
		},
		now: time.Now,
	}}
}

// SearchByName is a case-insensitive substring match.
func (r *CategoryRepository) SearchByName(ctx context.Context, userID, query string) ([]*models.Category, error) {
	return r.where(ctx, "name ILIKE '%' || $2 || '%'", userID, query)
}

type BudgetRepository struct {
	table[models.Budget, *models.Budget]
}

func NewBudgetRepository(pool *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{table[models.Budget, *models.Budget]{
		pool:    pool,
		name:    "budgets",
		entity:  models.EntityBudget,
		columns: []string{"category", "amount_cents", "period", "start_date", "end_date"},
		values: func(e *models.Budget) []any {
			return []any{e.Category, e.Amount, e.Period, e.StartDate, e.EndDate}
		},
		now: time.Now,
	}}
}

func (r *BudgetRepository) FindByCategory(ctx context.Context, userID, category string) ([]*models.Budget, error) {
	return r.where(ctx, "category = $2", userID, category)
}

type ContactRepository struct {
	table[models.Contact, *models.Contact]
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{table[models.Contact, *models.Contact]{
		pool:    pool,
		name:    "contacts",
		entity:  models.EntityContact,
		columns: []string{"name", "email", "phone", "notes"},
		values: func(e *models.Contact) []any {
			return []any{e.Name, e.Email, e.Phone, e.Notes}
		},
		now: time.Now,
	}}
}

func (r *ContactRepository) SearchByName(ctx context.Context, userID, query string) ([]*models.Contact, error) {
	return r.where(ctx, "name ILIKE '%' || $2 || '%'", userID, query)
}

type LoanRepository struct {
	table[models.Loan, *models.Loan]
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{table[models.Loan, *models.Loan]{
		pool:   pool,
		name:   "loans",
		entity: models.EntityLoan,
		columns: []string{
			"contact_id", "direction", "principal_cents", "outstanding_cents",
			"status", "description", "start_date", "due_date",
		},
		values: func(e *models.Loan) []any {
			return []any{
				e.ContactID, e.Direction, e.PrincipalAmount, e.OutstandingAmount,
				e.Status, e.Description, e.StartDate, e.DueDate,
			}
		},
		now: time.Now,
	}}
}

func (r *LoanRepository) FindByStatus(ctx context.Context, userID string, status models.LoanStatus) ([]*models.Loan, error) {
	return r.where(ctx, "status = $2", userID, status)
}

func (r *LoanRepository) FindByContact(ctx context.Context, userID, contactID string) ([]*models.Loan, error) {
	return r.where(ctx, "contact_id = $2", userID, contactID)
}

type LoanPaymentRepository struct {
	table[models.LoanPayment, *models.LoanPayment]
}

func NewLoanPaymentRepository(pool *pgxpool.Pool) *LoanPaymentRepository {
	return &LoanPaymentRepository{table[models.LoanPayment, *models.LoanPayment]{
		pool:    pool,
		name:    "loan_payments",
		entity:  models.EntityLoanPayment,
		columns: []string{"loan_id", "amount_cents", "date", "note"},
		values: func(e *models.LoanPayment) []any {
			return []any{e.LoanID, e.Amount, e.Date, e.Note}
		},
		now: time.Now,
	}}
}

func (r *LoanPaymentRepository) FindByLoanID(ctx context.Context, userID, loanID string) ([]*models.LoanPayment, error) {
	return r.where(ctx, "loan_id = $2", userID, loanID)
}

var (
	_ repositories.ExpenseRepository     = (*ExpenseRepository)(nil)
	_ repositories.IncomeRepository      = (*IncomeRepository)(nil)
	_ repositories.CategoryRepository    = (*CategoryRepository)(nil)
	_ repositories.BudgetRepository      = (*BudgetRepository)(nil)
	_ repositories.ContactRepository     = (*ContactRepository)(nil)
	_ repositories.LoanRepository        = (*LoanRepository)(nil)
	_ repositories.LoanPaymentRepository = (*LoanPaymentRepository)(nil)
)
