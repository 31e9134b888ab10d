package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable clock for expiry tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore(WithClock(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	t.Run("first mark wins", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "ledger.expense_created:1", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, "ledger.expense_created:1", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("expired mark can be taken again", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "ledger.budget_applied:2", time.Minute)
		require.NoError(t, err)
		require.True(t, isNew)

		clock.Advance(time.Minute)

		isNew, err = store.MarkProcessed(ctx, "ledger.budget_applied:2", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessedAndForget(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	processed, err := store.IsProcessed(ctx, "k")
	require.NoError(t, err)
	assert.False(t, processed)

	_, _ = store.MarkProcessed(ctx, "k", time.Hour)
	processed, _ = store.IsProcessed(ctx, "k")
	assert.True(t, processed)

	require.NoError(t, store.Forget(ctx, "k"))
	processed, _ = store.IsProcessed(ctx, "k")
	assert.False(t, processed)

	// forgetting an unknown key is fine
	assert.NoError(t, store.Forget(ctx, "never-seen"))

	_, _ = store.MarkProcessed(ctx, "short", time.Second)
	clock.Advance(2 * time.Second)
	processed, _ = store.IsProcessed(ctx, "short")
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Sweep(t *testing.T) {
	store, clock := newClockedStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short-1", time.Second)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	assert.Equal(t, 3, store.Size())

	clock.Advance(time.Minute)
	store.sweep()

	assert.Equal(t, 1, store.Size())
	processed, _ := store.IsProcessed(ctx, "long")
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_SweepLoop(t *testing.T) {
	store := NewInMemoryIdempotencyStore(WithSweepInterval(5 * time.Millisecond))
	defer store.Close()

	_, _ = store.MarkProcessed(context.Background(), "gone", time.Millisecond)

	assert.Eventually(t, func() bool { return store.Size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestInMemoryIdempotencyStore_ConcurrentMarks(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	const workers = 100
	results := make(chan bool, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(context.Background(), "same-event", time.Hour)
			results <- err == nil && isNew
		}()
	}
	wg.Wait()
	close(results)

	newCount := 0
	for isNew := range results {
		if isNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
