package localstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/prudhvinik1/ledgersync/internal/models"
)

// Enqueue appends a pending mutation and sets its Seq.
func (o ops) Enqueue(ctx context.Context, item *models.QueueItem) error {
	if item.Status == "" {
		item.Status = models.QueuePending
	}
	res, err := o.q.ExecContext(ctx, `
		INSERT INTO queue_items (action, entity_type, payload, local_id, remote_id, timestamp, retry_count, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Action, item.EntityType, string(item.Payload), item.LocalID, nullString(item.RemoteID),
		item.Timestamp.UnixMilli(), item.RetryCount, item.Status)
	if err != nil {
		return storageErr("enqueue", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return storageErr("enqueue", err)
	}
	item.Seq = seq
	return nil
}

// QueueItems returns every queued mutation in enqueue order. Seq is used
// rather than the timestamp so a clock stepping backwards cannot put an
// UPDATE ahead of its own CREATE.
func (o ops) QueueItems(ctx context.Context) ([]*models.QueueItem, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT seq, action, entity_type, payload, local_id, remote_id, timestamp,
		       retry_count, status, last_attempt, error
		FROM queue_items ORDER BY seq`)
	if err != nil {
		return nil, storageErr("list queue", err)
	}
	defer rows.Close()

	var out []*models.QueueItem
	for rows.Next() {
		var (
			item        models.QueueItem
			payload     string
			remoteID    sql.NullString
			ts          int64
			lastAttempt sql.NullInt64
			errMsg      sql.NullString
		)
		if err := rows.Scan(&item.Seq, &item.Action, &item.EntityType, &payload, &item.LocalID, &remoteID,
			&ts, &item.RetryCount, &item.Status, &lastAttempt, &errMsg); err != nil {
			return nil, storageErr("scan queue item", err)
		}
		item.Payload = []byte(payload)
		item.RemoteID = remoteID.String
		item.Timestamp = time.UnixMilli(ts).UTC()
		if lastAttempt.Valid {
			at := time.UnixMilli(lastAttempt.Int64).UTC()
			item.LastAttempt = &at
		}
		item.Error = errMsg.String
		out = append(out, &item)
	}
	return out, storageErr("list queue", rows.Err())
}

func (o ops) MarkSyncing(ctx context.Context, seq int64, at time.Time) error {
	_, err := o.q.ExecContext(ctx, `UPDATE queue_items SET status = ?, last_attempt = ? WHERE seq = ?`,
		models.QueueSyncing, at.UnixMilli(), seq)
	return storageErr("mark syncing", err)
}

// MarkFailed records a failed attempt at time at with the new retry count.
func (o ops) MarkFailed(ctx context.Context, seq int64, retryCount int, errMsg string, at time.Time) error {
	_, err := o.q.ExecContext(ctx, `
		UPDATE queue_items SET status = ?, retry_count = ?, error = ?, last_attempt = ? WHERE seq = ?`,
		models.QueueFailed, retryCount, errMsg, at.UnixMilli(), seq)
	return storageErr("mark failed", err)
}

func (o ops) RemoveQueueItem(ctx context.Context, seq int64) error {
	_, err := o.q.ExecContext(ctx, `DELETE FROM queue_items WHERE seq = ?`, seq)
	return storageErr("remove queue item", err)
}

// RecoverSyncing returns items left "syncing" by a crash to "pending".
func (o ops) RecoverSyncing(ctx context.Context) (int64, error) {
	res, err := o.q.ExecContext(ctx, `UPDATE queue_items SET status = ? WHERE status = ?`,
		models.QueuePending, models.QueueSyncing)
	if err != nil {
		return 0, storageErr("recover syncing", err)
	}
	n, err := res.RowsAffected()
	return n, storageErr("recover syncing", err)
}

// PendingForEntity counts queued mutations that target the entity, by
// either its client id or its server id.
func (o ops) PendingForEntity(ctx context.Context, t models.EntityType, id string) (int, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM queue_items
		WHERE entity_type = ? AND (local_id = ? OR remote_id = ?)`, t, id, id).Scan(&n)
	return n, storageErr("count pending", err)
}

// RewriteRemoteID points the entity's queued mutations at its server id.
func (o ops) RewriteRemoteID(ctx context.Context, t models.EntityType, localID, remoteID string) error {
	_, err := o.q.ExecContext(ctx, `UPDATE queue_items SET remote_id = ? WHERE entity_type = ? AND local_id = ?`,
		remoteID, t, localID)
	return storageErr("rewrite remote id", err)
}

func (o ops) QueueDepth(ctx context.Context) (int, error) {
	var n int
	err := o.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&n)
	return n, storageErr("queue depth", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
