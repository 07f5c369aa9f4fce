package surreal

import (
	"context"
	"time"

	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	surrealdb "github.com/surrealdb/surrealdb.go"
)

func newCollection[T any, P row[T]](db *surrealdb.DB, table string, entity models.EntityType) collection[T, P] {
	return collection[T, P]{db: db, table: table, entity: entity, now: time.Now}
}

const byName = "string::lowercase(name) CONTAINS string::lowercase($q)"

type ExpenseRepository struct {
	collection[models.Expense, *models.Expense]
}

func NewExpenseRepository(db *surrealdb.DB) *ExpenseRepository {
	return &ExpenseRepository{newCollection[models.Expense, *models.Expense](db, "expenses", models.EntityExpense)}
}

func (r *ExpenseRepository) FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Expense, error) {
	return r.where(ctx, "date >= $from AND date <= $to", userID,
		map[string]any{"from": from.String(), "to": to.String()})
}

func (r *ExpenseRepository) FindByCategory(ctx context.Context, userID, category string) ([]*models.Expense, error) {
	return r.where(ctx, "category = $v", userID, map[string]any{"v": category})
}

type IncomeRepository struct {
	collection[models.Income, *models.Income]
}

func NewIncomeRepository(db *surrealdb.DB) *IncomeRepository {
	return &IncomeRepository{newCollection[models.Income, *models.Income](db, "incomes", models.EntityIncome)}
}

func (r *IncomeRepository) FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Income, error) {
	return r.where(ctx, "date >= $from AND date <= $to", userID,
		map[string]any{"from": from.String(), "to": to.String()})
}

type CategoryRepository struct {
	collection[models.Category, *models.Category]
}

func NewCategoryRepository(db *surrealdb.DB) *CategoryRepository {
	return &CategoryRepository{newCollection[models.Category, *models.Category](db, "categories", models.EntityCategory)}
}

func (r *CategoryRepository) SearchByName(ctx context.Context, userID, query string) ([]*models.Category, error) {
	return r.where(ctx, byName, userID, map[string]any{"q": query})
}

type BudgetRepository struct {
	collection[models.Budget, *models.Budget]
}

func NewBudgetRepository(db *surrealdb.DB) *BudgetRepository {
	return &BudgetRepository{newCollection[models.Budget, *models.Budget](db, "budgets", models.EntityBudget)}
}

func (r *BudgetRepository) FindByCategory(ctx context.Context, userID, category string) ([]*models.Budget, error) {
	return r.where(ctx, "category = $v", userID, map[string]any{"v": category})
}

type ContactRepository struct {
	collection[models.Contact, *models.Contact]
}

func NewContactRepository(db *surrealdb.DB) *ContactRepository {
	return &ContactRepository{newCollection[models.Contact, *models.Contact](db, "contacts", models.EntityContact)}
}

func (r *ContactRepository) SearchByName(ctx context.Context, userID, query string) ([]*models.Contact, error) {
	return r.where(ctx, byName, userID, map[string]any{"q": query})
}

type LoanRepository struct {
	collection[models.Loan, *models.Loan]
}

func NewLoanRepository(db *surrealdb.DB) *LoanRepository {
	return &LoanRepository{newCollection[models.Loan, *models.Loan](db, "loans", models.EntityLoan)}
}

func (r *LoanRepository) FindByStatus(ctx context.Context, userID string, status models.LoanStatus) ([]*models.Loan, error) {
	return r.where(ctx, "status = $v", userID, map[string]any{"v": string(status)})
}

func (r *LoanRepository) FindByContact(ctx context.Context, userID, contactID string) ([]*models.Loan, error) {
	return r.where(ctx, "contactId = $v", userID, map[string]any{"v": contactID})
}

type LoanPaymentRepository struct {
	collection[models.LoanPayment, *models.LoanPayment]
}

func NewLoanPaymentRepository(db *surrealdb.DB) *LoanPaymentRepository {
	return &LoanPaymentRepository{newCollection[models.LoanPayment, *models.LoanPayment](db, "loan_payments", models.EntityLoanPayment)}
}

func (r *LoanPaymentRepository) FindByLoanID(ctx context.Context, userID, loanID string) ([]*models.LoanPayment, error) {
	return r.where(ctx, "loanId = $v", userID, map[string]any{"v": loanID})
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
