package ledger

import (
	"context"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/ledger"
	"github.com/cenkalti/backoff/v4"
)

// Options tunes the consistency engine
type Options struct {
	// MaxBudgetRetries is the number of read-compute-write attempts per budget
	// (and per account balance adjustment) before a conflict is surfaced
	MaxBudgetRetries     int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	MaxLinkedBudgets     int
}

// DefaultOptions returns the engine defaults
func DefaultOptions() Options {
	return Options{
		MaxBudgetRetries:     5,
		RetryInitialInterval: 10 * time.Millisecond,
		RetryMaxInterval:     500 * time.Millisecond,
		MaxLinkedBudgets:     ledger.DefaultMaxLinkedBudgets,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxBudgetRetries <= 0 {
		o.MaxBudgetRetries = d.MaxBudgetRetries
	}
	if o.RetryInitialInterval < 0 {
		o.RetryInitialInterval = 0
	}
	if o.RetryMaxInterval < o.RetryInitialInterval {
		o.RetryMaxInterval = o.RetryInitialInterval
	}
	if o.MaxLinkedBudgets <= 0 {
		o.MaxLinkedBudgets = d.MaxLinkedBudgets
	}
	return o
}

// newBackOff bounds a conditional-update loop to MaxBudgetRetries attempts
func (o Options) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = o.RetryInitialInterval
	eb.MaxInterval = o.RetryMaxInterval
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := o.MaxBudgetRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}
