// Package surreal is backend A: the document store.
package surreal

import (
	"context"
	"fmt"

	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
	surrealdb "github.com/surrealdb/surrealdb.go"
)

type Provisioner struct {
	db *surrealdb.DB
}

func NewProvisioner(db *surrealdb.DB) *Provisioner {
	return &Provisioner{db: db}
}

// Provision records the user in the tenants table. Repeating it is a no-op.
func (p *Provisioner) Provision(ctx context.Context, userID string) error {
	_, err := surrealdb.Query[any](ctx, p.db,
		"INSERT IGNORE INTO tenants { id: $uid, provisionedAt: time::now() }",
		map[string]any{"uid": userID})
	if err != nil {
		return fmt.Errorf("failed to provision user on backend A: %w", err)
	}
	return nil
}

// NewSet wires every backend A repository over one connection.
func NewSet(db *surrealdb.DB) *repositories.Set {
	return &repositories.Set{
		Backend:      models.BackendA,
		Provisioner:  NewProvisioner(db),
		Expenses:     NewExpenseRepository(db),
		Incomes:      NewIncomeRepository(db),
		Categories:   NewCategoryRepository(db),
		Budgets:      NewBudgetRepository(db),
		Contacts:     NewContactRepository(db),
		Loans:        NewLoanRepository(db),
		LoanPayments: NewLoanPaymentRepository(db),
	}
}
