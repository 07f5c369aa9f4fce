package surreal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	surrealdb "github.com/surrealdb/surrealdb.go"
	sdbmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

type row[T any] interface {
	*T
	models.Entity
}

// collection stores one entity type as documents in a SurrealDB table. The
// record id is the entity id; the remaining fields use the entity's JSON
// names, so dates are "YYYY-MM-DD" strings and compare correctly as text.
type collection[T any, P row[T]] struct {
	db     *surrealdb.DB
	table  string
	entity models.EntityType
	now    func() time.Time
}

func (c *collection[T, P]) query(ctx context.Context, op, sql string, vars map[string]any) ([]P, error) {
	if vars == nil {
		vars = map[string]any{}
	}
	vars["tb"] = c.table

	results, err := surrealdb.Query[[]map[string]any](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", op, c.table, err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	last := (*results)[len(*results)-1]
	if last.Status != "OK" {
		return nil, fmt.Errorf("failed to %s %s: status %s", op, c.table, last.Status)
	}
	return c.decode(last.Result)
}

func (c *collection[T, P]) decode(docs []map[string]any) ([]P, error) {
	out := make([]P, 0, len(docs))
	for _, doc := range docs {
		switch id := doc["id"].(type) {
		case sdbmodels.RecordID:
			doc["id"] = fmt.Sprint(id.ID)
		case *sdbmodels.RecordID:
			doc["id"] = fmt.Sprint(id.ID)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", c.table, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", c.table, err)
		}
		out = append(out, P(&v))
	}
	return out, nil
}

// content flattens the entity into document fields without its id.
func content(e models.Entity) (map[string]any, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EntityType(), err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EntityType(), err)
	}
	delete(doc, "id")
	return doc, nil
}

// where returns the user's documents matching cond, which may refer to $uid
// and the extra vars.
func (c *collection[T, P]) where(ctx context.Context, cond string, userID string, vars map[string]any) ([]P, error) {
	sql := "SELECT * FROM type::table($tb) WHERE userId = $uid"
	if cond != "" {
		sql += " AND " + cond
	}
	sql += " ORDER BY createdAt"
	if vars == nil {
		vars = map[string]any{}
	}
	vars["uid"] = userID
	return c.query(ctx, "query", sql, vars)
}

func (c *collection[T, P]) FindByUserID(ctx context.Context, userID string) ([]P, error) {
	return c.where(ctx, "", userID, nil)
}

func (c *collection[T, P]) FindByID(ctx context.Context, userID, id string) (P, error) {
	found, err := c.query(ctx, "get",
		"SELECT * FROM type::thing($tb, $id) WHERE userId = $uid",
		map[string]any{"id": id, "uid": userID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, apperr.NotFound(string(c.entity), id)
	}
	return found[0], nil
}

// lookup reads a record regardless of owner.
func (c *collection[T, P]) lookup(ctx context.Context, id string) (P, error) {
	found, err := c.query(ctx, "get", "SELECT * FROM type::thing($tb, $id)", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// Create stores a new document. An id the user already owns returns the
// stored document unchanged; an id owned by another user is not found.
func (c *collection[T, P]) Create(ctx context.Context, entity P) (P, error) {
	if entity.GetID() == "" {
		entity.SetID(uuid.NewString())
	}
	if entity.GetCreatedAt().IsZero() || entity.GetUpdatedAt().IsZero() {
		entity.Stamp(c.now())
	}

	existing, err := c.lookup(ctx, entity.GetID())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.GetUserID() != entity.GetUserID() {
			return nil, apperr.NotFound(string(c.entity), entity.GetID())
		}
		return existing, nil
	}

	doc, err := content(entity)
	if err != nil {
		return nil, err
	}
	created, err := c.query(ctx, "create",
		"CREATE type::thing($tb, $id) CONTENT $content",
		map[string]any{"id": entity.GetID(), "content": doc})
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("failed to create %s: no document returned", c.table)
	}
	return created[0], nil
}

func (c *collection[T, P]) Update(ctx context.Context, entity P) (P, error) {
	current, err := c.FindByID(ctx, entity.GetUserID(), entity.GetID())
	if err != nil {
		return nil, err
	}
	if entity.GetUpdatedAt().IsZero() {
		entity.Stamp(c.now())
	}

	entity.SetCreatedAt(current.GetCreatedAt())

	doc, err := content(entity)
	if err != nil {
		return nil, err
	}

	updated, err := c.query(ctx, "update",
		"UPDATE type::thing($tb, $id) CONTENT $content WHERE userId = $uid RETURN AFTER",
		map[string]any{"id": entity.GetID(), "uid": entity.GetUserID(), "content": doc})
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, apperr.NotFound(string(c.entity), entity.GetID())
	}
	return updated[0], nil
}

func (c *collection[T, P]) Delete(ctx context.Context, userID, id string) error {
	if _, err := c.FindByID(ctx, userID, id); err != nil {
		return err
	}
	_, err := c.query(ctx, "delete",
		"DELETE type::thing($tb, $id) WHERE userId = $uid",
		map[string]any{"id": id, "uid": userID})
	return err
}
