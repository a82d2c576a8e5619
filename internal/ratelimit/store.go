package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the slice of the persistence layer the SQL counter needs.
type CounterStore interface {
	IncrementRateCounter(ctx context.Context, keyID, bucket string, expiresAt time.Time) (int64, error)
}

// StoreCounter keeps counters in the gateway database.
type StoreCounter struct {
	store CounterStore
	now   func() time.Time
}

// NewStoreCounter wraps a store as a Counter.
func NewStoreCounter(store CounterStore) *StoreCounter {
	return &StoreCounter{store: store, now: time.Now}
}

// Increment implements Counter.
func (c *StoreCounter) Increment(ctx context.Context, keyID, bucket string, ttl time.Duration) (int64, error) {
	return c.store.IncrementRateCounter(ctx, keyID, bucket, c.now().Add(ttl))
}
