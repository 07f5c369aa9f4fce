package localstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

// Put inserts or replaces a mirror record.
func (o ops) Put(ctx context.Context, rec *models.MirrorRecord) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO mirror_records (entity_type, id, user_id, payload, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, id) DO UPDATE SET
			user_id = excluded.user_id,
			payload = excluded.payload,
			synced = excluded.synced,
			updated_at = excluded.updated_at`,
		rec.EntityType, rec.ID, rec.UserID, string(rec.Payload), rec.Synced, rec.UpdatedAt.UnixMilli())
	return storageErr("put mirror", err)
}

// Get returns the mirror of (t, id) or a NotFoundError.
func (o ops) Get(ctx context.Context, t models.EntityType, id string) (*models.MirrorRecord, error) {
	row := o.q.QueryRowContext(ctx, `
		SELECT entity_type, id, user_id, payload, synced, updated_at
		FROM mirror_records WHERE entity_type = ? AND id = ?`, t, id)
	rec, err := scanMirror(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(string(t), id)
	}
	if err != nil {
		return nil, storageErr("get mirror", err)
	}
	return rec, nil
}

// Query returns the mirrors of type t that match keep, or all of them when
// keep is nil, oldest first.
func (o ops) Query(ctx context.Context, t models.EntityType, keep func(*models.MirrorRecord) bool) ([]*models.MirrorRecord, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT entity_type, id, user_id, payload, synced, updated_at
		FROM mirror_records WHERE entity_type = ? ORDER BY updated_at, id`, t)
	if err != nil {
		return nil, storageErr("query mirrors", err)
	}
	defer rows.Close()

	var out []*models.MirrorRecord
	for rows.Next() {
		rec, err := scanMirror(rows)
		if err != nil {
			return nil, storageErr("scan mirror", err)
		}
		if keep == nil || keep(rec) {
			out = append(out, rec)
		}
	}
	return out, storageErr("query mirrors", rows.Err())
}

// Delete removes a mirror. Deleting a missing mirror is not an error.
func (o ops) Delete(ctx context.Context, t models.EntityType, id string) error {
	_, err := o.q.ExecContext(ctx, `DELETE FROM mirror_records WHERE entity_type = ? AND id = ?`, t, id)
	return storageErr("delete mirror", err)
}

// ReplaceID moves a mirror from a client id to the id the server assigned.
func (o ops) ReplaceID(ctx context.Context, t models.EntityType, oldID, newID string, payload []byte) error {
	if oldID == newID {
		_, err := o.q.ExecContext(ctx, `UPDATE mirror_records SET payload = ? WHERE entity_type = ? AND id = ?`,
			string(payload), t, oldID)
		return storageErr("replace mirror id", err)
	}
	_, err := o.q.ExecContext(ctx, `UPDATE mirror_records SET id = ?, payload = ? WHERE entity_type = ? AND id = ?`,
		newID, string(payload), t, oldID)
	return storageErr("replace mirror id", err)
}

// ClearAll drops every mirror, queued mutation and suppressed remote id.
// Metadata survives.
func (o ops) ClearAll(ctx context.Context) error {
	if _, err := o.q.ExecContext(ctx, `DELETE FROM mirror_records`); err != nil {
		return storageErr("clear mirrors", err)
	}
	if _, err := o.q.ExecContext(ctx, `DELETE FROM suppressed_remote`); err != nil {
		return storageErr("clear suppressed", err)
	}
	_, err := o.q.ExecContext(ctx, `DELETE FROM queue_items`)
	return storageErr("clear queue", err)
}

// Suppress remembers that remoteID was dropped as a duplicate of localID,
// so later pulls keep skipping it after the local record has synced.
func (o ops) Suppress(ctx context.Context, t models.EntityType, remoteID, localID string) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO suppressed_remote (entity_type, remote_id, local_id) VALUES (?, ?, ?)
		ON CONFLICT (entity_type, remote_id) DO NOTHING`, t, remoteID, localID)
	return storageErr("suppress remote", err)
}

// Suppressed returns the remote ids of type t dropped as duplicates.
func (o ops) Suppressed(ctx context.Context, t models.EntityType) (map[string]bool, error) {
	rows, err := o.q.QueryContext(ctx, `SELECT remote_id FROM suppressed_remote WHERE entity_type = ?`, t)
	if err != nil {
		return nil, storageErr("list suppressed", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scan suppressed", err)
		}
		out[id] = true
	}
	return out, storageErr("list suppressed", rows.Err())
}

// CountUnsynced reports how many mirrors still wait for the server.
func (o ops) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM mirror_records WHERE synced = 0`).Scan(&n)
	return n, storageErr("count unsynced", err)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMirror(s scanner) (*models.MirrorRecord, error) {
	var (
		rec       models.MirrorRecord
		payload   string
		updatedAt int64
	)
	if err := s.Scan(&rec.EntityType, &rec.ID, &rec.UserID, &payload, &rec.Synced, &updatedAt); err != nil {
		return nil, err
	}
	rec.Payload = []byte(payload)
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &rec, nil
}
