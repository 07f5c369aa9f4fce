package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

var baseColumns = []string{"id", "user_id", "created_at", "updated_at"}

// row is the pointer form of an entity struct.
type row[T any] interface {
	*T
	models.Entity
}

// table implements the shared CRUD of one entity table. columns are the
// entity's own columns and values returns them in the same order.
type table[T any, P row[T]] struct {
	pool    *pgxpool.Pool
	name    string
	entity  models.EntityType
	columns []string
	values  func(P) []any
	now     func() time.Time
}

func (t *table[T, P]) selectList() string {
	return strings.Join(append(append([]string{}, baseColumns...), t.columns...), ", ")
}

func (t *table[T, P]) query(ctx context.Context, op, sql string, args ...any) ([]P, error) {
	rows, err := t.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", op, t.name, err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", op, t.name, err)
	}
	out := make([]P, len(found))
	for i, f := range found {
		out[i] = P(f)
	}
	return out, nil
}

// where returns the user's rows matching cond. Placeholders in cond start
// at $2; $1 is the user id.
func (t *table[T, P]) where(ctx context.Context, cond string, userID string, args ...any) ([]P, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, t.selectList(), t.name)
	if cond != "" {
		sql += " AND " + cond
	}
	sql += " ORDER BY created_at, id"
	return t.query(ctx, "query", sql, append([]any{userID}, args...)...)
}

func (t *table[T, P]) FindByUserID(ctx context.Context, userID string) ([]P, error) {
	return t.where(ctx, "", userID)
}

func (t *table[T, P]) FindByID(ctx context.Context, userID, id string) (P, error) {
	found, err := t.where(ctx, "id = $2", userID, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperr.NotFound(string(t.entity), id)
	}
	return found[0], nil
}

// Create inserts the entity. An id the user already owns returns the stored
// row unchanged; an id owned by another user is reported as not found.
func (t *table[T, P]) Create(ctx context.Context, entity P) (P, error) {
	if entity.GetID() == "" {
		entity.SetID(uuid.NewString())
	}
	stampIfMissing(entity, t.now())

	cols := append(append([]string{}, baseColumns...), t.columns...)
	args := append([]any{entity.GetID(), entity.GetUserID(), entity.GetCreatedAt(), entity.GetUpdatedAt()}, t.values(entity)...)
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING RETURNING %s`,
		t.name, strings.Join(cols, ", "), placeholders(1, len(cols)), t.selectList())

	created, err := t.query(ctx, "create", sql, args...)
	if err != nil {
		return nil, err
	}
	if len(created) == 1 {
		return created[0], nil
	}
	return t.FindByID(ctx, entity.GetUserID(), entity.GetID())
}

func (t *table[T, P]) Update(ctx context.Context, entity P) (P, error) {
	if entity.GetUpdatedAt().IsZero() {
		entity.Stamp(t.now())
	}

	sets := make([]string, 0, len(t.columns)+1)
	sets = append(sets, "updated_at = $3")
	for i, c := range t.columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+4))
	}
	args := append([]any{entity.GetID(), entity.GetUserID(), entity.GetUpdatedAt()}, t.values(entity)...)
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1 AND user_id = $2 RETURNING %s`,
		t.name, strings.Join(sets, ", "), t.selectList())

	updated, err := t.query(ctx, "update", sql, args...)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, apperr.NotFound(string(t.entity), entity.GetID())
	}
	return updated[0], nil
}

func (t *table[T, P]) Delete(ctx context.Context, userID, id string) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, t.name)
	result, err := t.pool.Exec(ctx, sql, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", t.name, err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(string(t.entity), id)
	}
	return nil
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

// stampIfMissing keeps client-supplied timestamps so both sides agree on
// updatedAt after a sync.
func stampIfMissing(e models.Entity, now time.Time) {
	if e.GetCreatedAt().IsZero() || e.GetUpdatedAt().IsZero() {
		e.Stamp(now)
	}
}
