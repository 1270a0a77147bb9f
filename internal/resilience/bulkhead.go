package resilience

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Bulkhead bounds the number of concurrent calls into a shared backend so a
// burst of cold-cache requests cannot exhaust its connection pool.
type Bulkhead struct {
	sem *semaphore.Weighted
}

// NewBulkhead creates a Bulkhead admitting at most limit concurrent calls.
// A limit below 1 yields a nil Bulkhead, which admits everything.
func NewBulkhead(limit int) *Bulkhead {
	if limit < 1 {
		return nil
	}
	return &Bulkhead{sem: semaphore.NewWeighted(int64(limit))}
}

// Run acquires a slot, runs fn, and releases the slot. It blocks while all
// slots are busy and returns the context error if ctx ends first.
func (b *Bulkhead) Run(ctx context.Context, fn func() error) error {
	if b == nil || b.sem == nil {
		return fn()
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("bulkhead: %w", err)
	}
	defer b.sem.Release(1)
	return fn()
}
