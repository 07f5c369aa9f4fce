package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror_PutGetQueryDelete(t *testing.T) {
	// ARRANGE
	s := openTestStore(t)
	ctx := context.Background()
	rec := mirror(t, "exp-1", 500, false)

	// ACT
	require.NoError(t, s.Put(ctx, rec))
	got, err := s.Get(ctx, models.EntityExpense, "exp-1")

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.Synced)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	require.NoError(t, s.Put(ctx, mirror(t, "exp-2", 700, true)))
	unsynced, err := s.Query(ctx, models.EntityExpense, func(r *models.MirrorRecord) bool { return !r.Synced })
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, "exp-1", unsynced[0].ID)

	require.NoError(t, s.Delete(ctx, models.EntityExpense, "exp-1"))
	_, err = s.Get(ctx, models.EntityExpense, "exp-1")
	assert.True(t, apperr.IsNotFound(err))
	assert.NoError(t, s.Delete(ctx, models.EntityExpense, "exp-1"), "deleting twice is fine")
}

func TestMirror_ReplaceIDKeepsSyncFlag(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, mirror(t, "local-1", 500, false)))

	require.NoError(t, s.ReplaceID(ctx, models.EntityExpense, "local-1", "srv-1", []byte(`{"id":"srv-1"}`)))

	_, err := s.Get(ctx, models.EntityExpense, "local-1")
	assert.True(t, apperr.IsNotFound(err))
	got, err := s.Get(ctx, models.EntityExpense, "srv-1")
	require.NoError(t, err)
	assert.False(t, got.Synced)
	assert.JSONEq(t, `{"id":"srv-1"}`, string(got.Payload))
}

func TestSuppressed_SurvivesUntilClearAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Suppress(ctx, models.EntityExpense, "remote-1", "local-1"))
	require.NoError(t, s.Suppress(ctx, models.EntityExpense, "remote-1", "local-1"), "suppressing twice is fine")

	got, err := s.Suppressed(ctx, models.EntityExpense)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"remote-1": true}, got)
	other, err := s.Suppressed(ctx, models.EntityIncome)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.ClearAll(ctx))
	got, err = s.Suppressed(ctx, models.EntityExpense)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueue_FIFOAndLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// the clock stepped back between the two edits
	first := queueItem(models.ActionCreate, "exp-1", base)
	second := queueItem(models.ActionUpdate, "exp-1", base.Add(-2*time.Second))
	require.NoError(t, s.Enqueue(ctx, first))
	require.NoError(t, s.Enqueue(ctx, second))

	items, err := s.QueueItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.ActionCreate, items[0].Action, "ordered by enqueue sequence, not timestamp")
	assert.Equal(t, models.ActionUpdate, items[1].Action)
	assert.Equal(t, models.QueuePending, items[0].Status)
	assert.Nil(t, items[0].LastAttempt)

	attempt := base.Add(time.Minute)
	require.NoError(t, s.MarkSyncing(ctx, first.Seq, attempt))
	require.NoError(t, s.MarkFailed(ctx, first.Seq, 1, "boom", attempt))

	items, err = s.QueueItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.QueueFailed, items[0].Status)
	assert.Equal(t, 1, items[0].RetryCount)
	assert.Equal(t, "boom", items[0].Error)
	require.NotNil(t, items[0].LastAttempt)
	assert.True(t, attempt.Equal(*items[0].LastAttempt))

	require.NoError(t, s.RemoveQueueItem(ctx, first.Seq))
	depth, err := s.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestQueue_RecoverSyncing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	item := queueItem(models.ActionCreate, "exp-1", time.Now())
	require.NoError(t, s.Enqueue(ctx, item))
	require.NoError(t, s.MarkSyncing(ctx, item.Seq, time.Now()))

	n, err := s.RecoverSyncing(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	items, err := s.QueueItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.QueuePending, items[0].Status)
}

func TestQueue_RewriteRemoteIDAndPending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, queueItem(models.ActionUpdate, "local-1", time.Now())))

	require.NoError(t, s.RewriteRemoteID(ctx, models.EntityExpense, "local-1", "srv-1"))

	items, err := s.QueueItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", items[0].TargetID())
	n, err := s.PendingForEntity(ctx, models.EntityExpense, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.PendingForEntity(ctx, models.EntityExpense, "local-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestWithTx_RollsBackMirrorWhenEnqueueFails covers the all-or-nothing rule
// for a mutation and its queue entry.
func TestWithTx_RollsBackMirrorWhenEnqueueFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.Put(ctx, mirror(t, "exp-1", 500, false)); err != nil {
			return err
		}
		// violates the action CHECK constraint
		return tx.Enqueue(ctx, queueItem(models.Action("PATCH"), "exp-1", time.Now()))
	})

	require.Error(t, err)
	var storageError *apperr.StorageError
	require.ErrorAs(t, err, &storageError)
	assert.Equal(t, "enqueue", storageError.Op)
	_, isDriverErr := storageError.Err.(sqlite3.Error)
	assert.True(t, isDriverErr, "driver error is wrapped once, got %T", storageError.Err)
	_, err = s.Get(ctx, models.EntityExpense, "exp-1")
	assert.True(t, apperr.IsNotFound(err))
	depth, err := s.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestWithTx_ReturnsCallbackError(t *testing.T) {
	s := openTestStore(t)
	sentinel := errors.New("stop")

	err := s.WithTx(context.Background(), func(tx *Tx) error { return sentinel })

	assert.ErrorIs(t, err, sentinel)
}

func TestMeta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	done, err := s.MigrationComplete(ctx)
	require.NoError(t, err)
	assert.False(t, done)
	last, err := s.LastPullTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetMigrationComplete(ctx, true))
	require.NoError(t, s.SetLastPullTimestamp(ctx, at))

	done, err = s.MigrationComplete(ctx)
	require.NoError(t, err)
	assert.True(t, done)
	last, err = s.LastPullTimestamp(ctx)
	require.NoError(t, err)
	assert.True(t, at.Equal(last))
}

func TestClearAll_KeepsMeta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, mirror(t, "exp-1", 500, false)))
	require.NoError(t, s.Enqueue(ctx, queueItem(models.ActionCreate, "exp-1", time.Now())))
	require.NoError(t, s.SetMigrationComplete(ctx, true))

	require.NoError(t, s.ClearAll(ctx))

	unsynced, err := s.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, unsynced)
	depth, err := s.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
	done, err := s.MigrationComplete(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), mirror(t, "exp-1", 500, true)))
	require.NoError(t, s.Close())

	s, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(context.Background(), models.EntityExpense, "exp-1")
	assert.NoError(t, err)
}

// Helper functions for test setup

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mirror(t *testing.T, id string, cents int64, synced bool) *models.MirrorRecord {
	t.Helper()
	e := &models.Expense{
		Base:     models.Base{ID: id, UserID: "u1"},
		Amount:   models.Money(cents),
		Category: "Food",
		Date:     models.NewDate(2024, 5, 1),
	}
	e.Stamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	rec, err := models.NewMirrorRecord(e, synced)
	require.NoError(t, err)
	return rec
}

func queueItem(action models.Action, id string, ts time.Time) *models.QueueItem {
	return &models.QueueItem{
		Action:     action,
		EntityType: models.EntityExpense,
		Payload:    json.RawMessage(`{"id":"` + id + `"}`),
		LocalID:    id,
		Timestamp:  ts,
	}
}
