package cache

import (
	"context"
	"fmt"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	"go.uber.org/zap"
)

// IdempotencyStoreFactory picks the idempotency store for the configured deployment
type IdempotencyStoreFactory struct {
	redis                 config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory store. Default true.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redis:                 cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns a Redis store when Redis is enabled and reachable, and
// the in-memory store otherwise (unless fallback is disabled).
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if !f.redis.Enabled {
		f.logger.Debug("redis disabled, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, f.redis)
	if err == nil {
		f.logger.Info("using Redis idempotency store", zap.String("addr", f.redis.Addr()))
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for event deduplication: %w", err)
	}

	f.logger.Warn("redis unavailable, falling back to in-memory idempotency store; "+
		"events may be handled twice across instances",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
