// Package localstore is the on-device persistence of the sync engine: entity
// mirrors, the mutation queue and a little sync metadata, all in one SQLite
// file. Every failure comes back as an apperr.StorageError.
package localstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/database"
	"github.com/rs/zerolog"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	ops
	db     *sql.DB
	logger zerolog.Logger
}

// Tx exposes the same operations as Store inside one transaction.
type Tx struct {
	ops
}

// Open opens (creating and migrating if needed) the store at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, apperr.Storage("open", err)
	}
	logger.Info().Str("path", path).Msg("local store opened")
	return New(db, logger), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		ops:    ops{q: db},
		db:     db,
		logger: logger.With().Str("component", "localstore").Logger(),
	}
}

func (s *Store) Close() error {
	return apperr.Storage("close", s.db.Close())
}

// WithTx runs fn in a transaction and commits only if fn succeeds. The store
// holds a single connection, so fn must use tx and never s.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Storage("begin", err)
	}

	if err := fn(&Tx{ops: ops{q: sqlTx}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return apperr.Storage("commit", err)
	}
	return nil
}

type ops struct {
	q querier
}

// storageErr keeps nil as nil.
func storageErr(op string, err error) error {
	return apperr.Storage(op, err)
}
