package ratelimit

import (
	"context"
	"sync"
	"time"

	"monthbars/internal/source"
)

// TokenBucket is a token bucket limiter.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// PerMinute builds a bucket from a requests-per-minute budget, the unit
// vendors publish their quotas in. rpm <= 0 returns nil (no limit).
func PerMinute(rpm, burst int) *TokenBucket {
	if rpm <= 0 {
		return nil
	}
	return NewTokenBucket(float64(rpm)/60, burst)
}

// Wait blocks until one token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		// Refill
		elapsed := now.Sub(tb.last).Seconds()
		if elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens -= 1
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()
		waitDur := time.Duration(deficit / tb.rate * float64(time.Second))
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TokenBucketAdapter wraps an Adapter and gates its fetches with a token bucket.
// Listing lookups pass through ungated.
type TokenBucketAdapter struct {
	source.Adapter
	TB *TokenBucket
}

func (t *TokenBucketAdapter) FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return source.Table{}, err
		}
	}
	return t.Adapter.FetchMonthly(ctx, symbol, start, end)
}

func (t *TokenBucketAdapter) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			return source.Table{}, err
		}
	}
	return t.Adapter.FetchDaily(ctx, symbol, start, end)
}
