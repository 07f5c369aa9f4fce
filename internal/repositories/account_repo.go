package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

const uniqueViolation = "23505"

type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))

	query := `INSERT INTO accounts (id, email)
              VALUES ($1, $2)
              RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, account.ID, account.Email).Scan(&account.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.NewValidationError("email is already registered")
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT id, email, created_at FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT id, email, created_at FROM accounts WHERE email = $1`
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresAccountRepository) getOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	var account models.Account
	err := r.pool.QueryRow(ctx, query, arg).Scan(&account.ID, &account.Email, &account.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("account", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// Delete removes the account row. It is only used to roll back an account
// whose backend assignment failed, so it is a hard delete.
func (r *PostgresAccountRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM accounts WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFound("account", id)
	}

	return nil
}
