// Package postgres is backend B: the relational store. Every entity type has
// its own table keyed by id and scoped by user_id.
package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/prudhvinik1/ledgersync/internal/repositories"
)

//go:embed schema.sql
var schema string

type Provisioner struct {
	pool *pgxpool.Pool
}

func NewProvisioner(pool *pgxpool.Pool) *Provisioner {
	return &Provisioner{pool: pool}
}

// EnsureSchema creates any missing tables. It is safe to run repeatedly.
func (p *Provisioner) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create backend schema: %w", err)
	}
	return nil
}

// Provision registers the user as a tenant of this backend. It fails when
// the database is unreachable, which is what the assignment service relies
// on to fall back to the other backend.
func (p *Provisioner) Provision(ctx context.Context, userID string) error {
	query := `INSERT INTO tenants (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	if _, err := p.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to provision user on backend B: %w", err)
	}
	return nil
}

// NewSet wires every backend B repository over one pool.
func NewSet(pool *pgxpool.Pool) *repositories.Set {
	return &repositories.Set{
		Backend:      models.BackendB,
		Provisioner:  NewProvisioner(pool),
		Expenses:     NewExpenseRepository(pool),
		Incomes:      NewIncomeRepository(pool),
		Categories:   NewCategoryRepository(pool),
		Budgets:      NewBudgetRepository(pool),
		Contacts:     NewContactRepository(pool),
		Loans:        NewLoanRepository(pool),
		LoanPayments: NewLoanPaymentRepository(pool),
	}
}
