package repositories

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/directory.sql
var directorySchema string

// EnsureDirectorySchema creates the accounts and assignment tables if they
// are missing. Every statement is idempotent.
func EnsureDirectorySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, directorySchema); err != nil {
		return fmt.Errorf("failed to create directory schema: %w", err)
	}
	return nil
}
