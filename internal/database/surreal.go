package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	surrealdb "github.com/surrealdb/surrealdb.go"
)

// SurrealOptions locates and authenticates against backend A.
type SurrealOptions struct {
	URL       string
	Namespace string
	Database  string
	User      string
	Password  string
}

// NewSurrealDB connects, selects the namespace/database and signs in.
func NewSurrealDB(ctx context.Context, opts SurrealOptions, logger zerolog.Logger) (*surrealdb.DB, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to surrealdb: %w", err)
	}

	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("error selecting surrealdb namespace: %w", err)
	}

	token, err := db.SignIn(ctx, &surrealdb.Auth{
		Username: opts.User,
		Password: opts.Password,
	})
	if err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("error signing in to surrealdb: %w", err)
	}
	if err := db.Authenticate(ctx, token); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("error authenticating to surrealdb: %w", err)
	}

	logger.Info().Str("namespace", opts.Namespace).Str("database", opts.Database).Msg("surrealdb connection created")

	return db, nil
}
