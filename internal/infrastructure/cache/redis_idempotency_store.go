package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces ledger idempotency keys in a shared Redis
const DefaultKeyPrefix = "ledger:event:"

// RedisIdempotencyStore shares handled event keys between ledger instances
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore connects to Redis and pings it before returning
func NewRedisIdempotencyStore(ctx context.Context, cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	return NewRedisIdempotencyStoreWithClient(client, ""), nil
}

// NewRedisIdempotencyStoreWithClient wraps an existing client
func NewRedisIdempotencyStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed sets the key with SET NX so concurrent instances race safely
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return ok, nil
}

// IsProcessed checks if a key has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if event is processed: %w", err)
	}
	return n > 0, nil
}

// Forget deletes the key
func (s *RedisIdempotencyStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to forget event: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
