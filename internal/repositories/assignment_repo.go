package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

type PostgresAssignmentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAssignmentRepository(pool *pgxpool.Pool) *PostgresAssignmentRepository {
	return &PostgresAssignmentRepository{pool: pool}
}

// Create never overwrites: when two callers race, the first row wins and
// both get it back.
func (r *PostgresAssignmentRepository) Create(ctx context.Context, a *models.DatabaseAssignment) (*models.DatabaseAssignment, error) {
	query := `INSERT INTO database_assignments (user_id, backend)
	          VALUES ($1, $2)
	          ON CONFLICT (user_id) DO NOTHING
	          RETURNING user_id, backend, assigned_at`

	rows, err := r.pool.Query(ctx, query, a.UserID, a.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	stored, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[models.DatabaseAssignment])
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	if len(stored) == 1 {
		return stored[0], nil
	}
	return r.GetByUserID(ctx, a.UserID)
}

func (r *PostgresAssignmentRepository) GetByUserID(ctx context.Context, userID string) (*models.DatabaseAssignment, error) {
	query := `SELECT user_id, backend, assigned_at FROM database_assignments WHERE user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.DatabaseAssignment])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("assignment", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// CountByBackend reports how many users each backend hosts. Backends with no
// users are present with a zero count.
func (r *PostgresAssignmentRepository) CountByBackend(ctx context.Context) (map[models.Backend]int64, error) {
	query := `SELECT backend, COUNT(*) FROM database_assignments GROUP BY backend`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Backend]int64, len(models.Backends))
	for _, b := range models.Backends {
		counts[b] = 0
	}
	for rows.Next() {
		var backend models.Backend
		var n int64
		if err := rows.Scan(&backend, &n); err != nil {
			return nil, fmt.Errorf("failed to scan assignment count: %w", err)
		}
		counts[backend] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	return counts, nil
}
