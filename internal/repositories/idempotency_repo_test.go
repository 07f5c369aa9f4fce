package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRepository_SaveAndLookup(t *testing.T) {
	// ARRANGE
	client := getTestRedis(t)
	repo := NewRedisIdempotencyRepository(client, time.Minute)
	ctx := context.Background()
	userID, key := uuid.NewString(), uuid.NewString()
	rec := &models.IdempotencyRecord{EntityType: models.EntityExpense, ID: "exp-1", CreatedAt: time.Now().UTC()}

	// ACT
	err := repo.Save(ctx, userID, key, rec)

	// ASSERT
	require.NoError(t, err)
	got, err := repo.Lookup(ctx, userID, key)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", got.ID)
	assert.Equal(t, models.EntityExpense, got.EntityType)
}

func TestIdempotencyRepository_FirstSaveWins(t *testing.T) {
	client := getTestRedis(t)
	repo := NewRedisIdempotencyRepository(client, time.Minute)
	ctx := context.Background()
	userID, key := uuid.NewString(), uuid.NewString()

	require.NoError(t, repo.Save(ctx, userID, key, &models.IdempotencyRecord{EntityType: models.EntityIncome, ID: "first"}))
	require.NoError(t, repo.Save(ctx, userID, key, &models.IdempotencyRecord{EntityType: models.EntityIncome, ID: "second"}))

	got, err := repo.Lookup(ctx, userID, key)
	require.NoError(t, err)
	assert.Equal(t, "first", got.ID)
}

func TestIdempotencyRepository_KeysAreScopedByUser(t *testing.T) {
	client := getTestRedis(t)
	repo := NewRedisIdempotencyRepository(client, time.Minute)
	ctx := context.Background()
	key := uuid.NewString()

	require.NoError(t, repo.Save(ctx, "user-a", key, &models.IdempotencyRecord{EntityType: models.EntityIncome, ID: "x"}))

	_, err := repo.Lookup(ctx, "user-b", key)
	assert.True(t, apperr.IsNotFound(err))
}

// getTestRedis connects to a local Redis and skips when none is running.
func getTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
