package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
)

type ExpenseRepository struct {
	*store[models.Expense, *models.Expense]
}

func NewExpenseRepository() *ExpenseRepository {
	return &ExpenseRepository{newStore[models.Expense, *models.Expense](models.EntityExpense)}
}

func (r *ExpenseRepository) FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Expense, error) {
	return r.filter(userID, func(e *models.Expense) bool { return inRange(e.Date, from, to) }), nil
}

func (r *ExpenseRepository) FindByCategory(ctx context.Context, userID, category string) ([]*models.Expense, error) {
	return r.filter(userID, func(e *models.Expense) bool { return e.Category == category }), nil
}

type IncomeRepository struct {
	*store[models.Income, *models.Income]
}

func NewIncomeRepository() *IncomeRepository {
	return &IncomeRepository{newStore[models.Income, *models.Income](models.EntityIncome)}
}

func (r *IncomeRepository) FindByDateRange(ctx context.Context, userID string, from, to models.Date) ([]*models.Income, error) {
	return r.filter(userID, func(e *models.Income) bool { return inRange(e.Date, from, to) }), nil
}

type CategoryRepository struct {
	*store[models.Category, *models.Category]
}

func NewCategoryRepository() *CategoryRepository {
	return &CategoryRepository{newStore[models.Category, *models.Category](models.EntityCategory)}
}

func (r *CategoryRepository) SearchByName(ctx context.Context, userID, query string) ([]*models.Category, error) {
	return r.filter(userID, func(e *models.Category) bool { return containsFold(e.Name, query) }), nil
}

type BudgetRepository struct {
	*store[models.Budget, *models.Budget]
}

func NewBudgetRepository() *BudgetRepository {
	return &BudgetRepository{newStore[models.Budget, *models.Budget](models.EntityBudget)}
}

func (r *BudgetRepository) FindByCategory(ctx context.Context, userID, category string) ([]*models.Budget, error) {
	return r.filter(userID, func(e *models.Budget) bool { return e.Category == category }), nil
}

type ContactRepository struct {
	*store[models.Contact, *models.Contact]
}

func NewContactRepository() *ContactRepository {
	return &ContactRepository{newStore[models.Contact, *models.Contact](models.EntityContact)}
}

func (r *ContactRepository) SearchByName(ctx context.Context, userID, query string) ([]*models.Contact, error) {
	return r.filter(userID, func(e *models.Contact) bool { return containsFold(e.Name, query) }), nil
}

type LoanRepository struct {
	*store[models.Loan, *models.Loan]
}

func NewLoanRepository() *LoanRepository {
	return &LoanRepository{newStore[models.Loan, *models.Loan](models.EntityLoan)}
}

func (r *LoanRepository) FindByStatus(ctx context.Context, userID string, status models.LoanStatus) ([]*models.Loan, error) {
	return r.filter(userID, func(e *models.Loan) bool { return e.Status == status }), nil
}

func (r *LoanRepository) FindByContact(ctx context.Context, userID, contactID string) ([]*models.Loan, error) {
	return r.filter(userID, func(e *models.Loan) bool { return e.ContactID == contactID }), nil
}

type LoanPaymentRepository struct {
	*store[models.LoanPayment, *models.LoanPayment]
}

func NewLoanPaymentRepository() *LoanPaymentRepository {
	return &LoanPaymentRepository{newStore[models.LoanPayment, *models.LoanPayment](models.EntityLoanPayment)}
}

func (r *LoanPaymentRepository) FindByLoanID(ctx context.Context, userID, loanID string) ([]*models.LoanPayment, error) {
	return r.filter(userID, func(e *models.LoanPayment) bool { return e.LoanID == loanID }), nil
}

func inRange(d, from, to models.Date) bool {
	return !d.Before(from) && !to.Before(d)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ErrUnavailable is returned by a Provisioner that was told to fail.
var ErrUnavailable = errors.New("backend unavailable")

// Provisioner records provisioned users and can simulate an outage.
type Provisioner struct {
	mu          sync.Mutex
	unavailable bool
	users       map[string]bool
}

func (p *Provisioner) Provision(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unavailable {
		return ErrUnavailable
	}
	if p.users == nil {
		p.users = make(map[string]bool)
	}
	p.users[userID] = true
	return nil
}

// SetUnavailable makes later Provision calls fail.
func (p *Provisioner) SetUnavailable(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unavailable = down
}

func (p *Provisioner) Provisioned(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.users[userID]
}

// NewSet returns an empty repository set posing as backend b. The
// Provisioner is a *Provisioner.
func NewSet(b models.Backend) *repositories.Set {
	return &repositories.Set{
		Backend:      b,
		Provisioner:  &Provisioner{},
		Expenses:     NewExpenseRepository(),
		Incomes:      NewIncomeRepository(),
		Categories:   NewCategoryRepository(),
		Budgets:      NewBudgetRepository(),
		Contacts:     NewContactRepository(),
		Loans:        NewLoanRepository(),
		LoanPayments: NewLoanPaymentRepository(),
	}
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
