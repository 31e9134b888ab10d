package cache

import (
	"context"
	"sync"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps handled event keys in a map with expiry.
// State is per process, so it only deduplicates deliveries seen by this instance.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	expiry    map[string]time.Time
	now       func() time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryIdempotencyStore
type InMemoryOption func(*inMemoryOptions)

type inMemoryOptions struct {
	sweepInterval time.Duration
	now           func() time.Time
}

// WithSweepInterval sets how often expired keys are purged
func WithSweepInterval(d time.Duration) InMemoryOption {
	return func(o *inMemoryOptions) { o.sweepInterval = d }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) InMemoryOption {
	return func(o *inMemoryOptions) { o.now = now }
}

// NewInMemoryIdempotencyStore creates the store and starts its sweeper
func NewInMemoryIdempotencyStore(opts ...InMemoryOption) *InMemoryIdempotencyStore {
	o := inMemoryOptions{sweepInterval: defaultSweepInterval, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &InMemoryIdempotencyStore{
		expiry: make(map[string]time.Time),
		now:    o.now,
		stop:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop(o.sweepInterval)
	return s
}

// MarkProcessed records key until ttl elapses. It reports false when an
// unexpired mark already exists.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.expiry[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiry[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key carries an unexpired mark
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expiry[key]
	return ok && s.now().Before(exp), nil
}

// Forget drops the mark for key
func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expiry, key)
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of stored keys, expired ones included until swept
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

func (s *InMemoryIdempotencyStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, exp := range s.expiry {
		if !now.Before(exp) {
			delete(s.expiry, key)
		}
	}
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
