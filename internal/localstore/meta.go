package localstore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

const (
	keyMigrationComplete = "migration_complete"
	keyLastPull          = "last_pull_timestamp"
)

func (o ops) getMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := o.q.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get meta", err)
	}
	return value, true, nil
}

func (o ops) setMeta(ctx context.Context, key, value string) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	return storageErr("set meta", err)
}

func (o ops) MigrationComplete(ctx context.Context) (bool, error) {
	v, ok, err := o.getMeta(ctx, keyMigrationComplete)
	if err != nil || !ok {
		return false, err
	}
	return v == "true", nil
}

func (o ops) SetMigrationComplete(ctx context.Context, done bool) error {
	return o.setMeta(ctx, keyMigrationComplete, strconv.FormatBool(done))
}

// LastPullTimestamp is zero when no pull has completed.
func (o ops) LastPullTimestamp(ctx context.Context) (time.Time, error) {
	v, ok, err := o.getMeta(ctx, keyLastPull)
	if err != nil || !ok {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, storageErr("parse last pull", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (o ops) SetLastPullTimestamp(ctx context.Context, at time.Time) error {
	return o.setMeta(ctx, keyLastPull, strconv.FormatInt(at.UnixMilli(), 10))
}
