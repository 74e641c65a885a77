package ratelimit

import (
	"context"
	"sync"
	"time"

	"monthbars/internal/source"
)

// MinInterval wraps an adapter and enforces a minimum time between calls.
// Concurrent calls will wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	source.Adapter
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return m.gate(ctx, func() (source.Table, error) { return m.Adapter.FetchMonthly(ctx, symbol, start, end) })
}

func (m *MinInterval) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return m.gate(ctx, func() (source.Table, error) { return m.Adapter.FetchDaily(ctx, symbol, start, end) })
}

func (m *MinInterval) gate(ctx context.Context, call func() (source.Table, error)) (source.Table, error) {
	if m.Interval > 0 {
		// reserve the next slot under the lock so concurrent callers queue up
		m.mu.Lock()
		slot := m.last.Add(m.Interval)
		now := time.Now()
		if slot.Before(now) {
			slot = now
		}
		m.last = slot
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return source.Table{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	return call()
}

// Unwrap exposes the wrapped adapter, so capability checks such as
// source.ListingSource can look through decorators.
func (m *MinInterval) Unwrap() source.Adapter { return m.Adapter }

// Unwrap exposes the wrapped adapter.
func (t *TokenBucketAdapter) Unwrap() source.Adapter { return t.Adapter }
