package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/redis/go-redis/v9"
)

const idempotencyKeyFormat = "idem:%s:%s"

type RedisIdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyRepository(client *redis.Client, ttl time.Duration) *RedisIdempotencyRepository {
	return &RedisIdempotencyRepository{client: client, ttl: ttl}
}

func (r *RedisIdempotencyRepository) Lookup(ctx context.Context, userID, key string) (*models.IdempotencyRecord, error) {
	jsonData, err := r.client.Get(ctx, fmt.Sprintf(idempotencyKeyFormat, userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("idempotency key", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	var rec models.IdempotencyRecord
	if err := json.Unmarshal([]byte(jsonData), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return &rec, nil
}

// Save keeps the first record stored under a key; later saves are ignored.
func (r *RedisIdempotencyRepository) Save(ctx context.Context, userID, key string, rec *models.IdempotencyRecord) error {
	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}
	err = r.client.SetNX(ctx, fmt.Sprintf(idempotencyKeyFormat, userID, key), jsonData, r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set idempotency key: %w", err)
	}
	return nil
}
