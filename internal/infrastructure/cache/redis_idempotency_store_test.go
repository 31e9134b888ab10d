package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func redisConfigFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port}
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := NewRedisIdempotencyStore(ctx, redisConfigFor(t, mr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	isNew, err := store.MarkProcessed(ctx, "ledger.expense_created:1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, mr.Exists(DefaultKeyPrefix+"ledger.expense_created:1"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultKeyPrefix+"ledger.expense_created:1"))

	isNew, err = store.MarkProcessed(ctx, "ledger.expense_created:1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew)

	processed, err := store.IsProcessed(ctx, "ledger.expense_created:1")
	require.NoError(t, err)
	assert.True(t, processed)

	t.Run("ttl expiry", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "short", time.Minute)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)

		processed, err := store.IsProcessed(ctx, "short")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("forget", func(t *testing.T) {
		require.NoError(t, store.Forget(ctx, "ledger.expense_created:1"))
		processed, err := store.IsProcessed(ctx, "ledger.expense_created:1")
		require.NoError(t, err)
		assert.False(t, processed)
	})
}

func TestRedisIdempotencyStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStoreWithClient(client, "tenant-x:")
	t.Cleanup(func() { _ = store.Close() })

	_, err := store.MarkProcessed(context.Background(), "evt", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("tenant-x:evt"))
}

func TestRedisIdempotencyStore_Errors(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfigFor(t, mr)
	ctx := context.Background()

	store, err := NewRedisIdempotencyStore(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mr.SetError("ERR injected failure")
	_, err = store.MarkProcessed(ctx, "k", time.Minute)
	assert.ErrorContains(t, err, "mark event")
	_, err = store.IsProcessed(ctx, "k")
	assert.ErrorContains(t, err, "check if event")
	assert.ErrorContains(t, store.Forget(ctx, "k"), "forget event")
	mr.SetError("")

	mr.Close()
	_, err = NewRedisIdempotencyStore(ctx, cfg)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestIdempotencyStoreFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled redis gives in-memory", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{Enabled: false})
		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("reachable redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f := NewIdempotencyStoreFactory(redisConfigFor(t, mr), WithLogger(zaptest.NewLogger(t)))
		store, err := f.CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisIdempotencyStore{}, store)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := redisConfigFor(t, mr)
		mr.Close()

		store, err := NewIdempotencyStoreFactory(cfg).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)

		_, err = NewIdempotencyStoreFactory(cfg, WithInMemoryFallback(false)).CreateStore(ctx)
		assert.ErrorContains(t, err, "redis required")
	})
}
