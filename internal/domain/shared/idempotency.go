package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which event IDs have already been handled,
// so at-least-once deliveries are processed once
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed for ttl.
	// Returns true if the key was newly marked, false if it was already processed
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Forget removes a key so the next delivery is handled again
	Forget(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a processed key is remembered. Default: 24 hours
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled. Default: true
	Enabled bool

	// ReleaseOnFailure forgets the key when the wrapped handler fails, so a
	// redelivery is retried instead of being dropped as a duplicate
	ReleaseOnFailure bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:              24 * time.Hour,
		Enabled:          true,
		ReleaseOnFailure: true,
	}
}
