package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"monthbars/internal/model"
	"monthbars/internal/source"
)

// entry stores one cached table with expiry.
type entry struct {
	expiresAt time.Time
	table     source.Table
}

// Adapter caches successful tables per (frequency, symbol, window) for a TTL.
// Concurrent misses on the same key share one upstream call. Errors and
// empty tables are not cached.
type Adapter struct {
	source.Adapter
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry
	sf    singleflight.Group
}

func (c *Adapter) Unwrap() source.Adapter { return c.Adapter }

func (c *Adapter) FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return c.get(ctx, source.Monthly, symbol, start, end, c.Adapter.FetchMonthly)
}

func (c *Adapter) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return c.get(ctx, source.Daily, symbol, start, end, c.Adapter.FetchDaily)
}

type fetchFunc func(ctx context.Context, symbol string, start, end time.Time) (source.Table, error)

func (c *Adapter) get(ctx context.Context, freq source.Frequency, symbol string, start, end time.Time, fetch fetchFunc) (source.Table, error) {
	if c.TTL <= 0 {
		return fetch(ctx, symbol, start, end)
	}
	key := fmt.Sprintf("%s|%s|%s|%s", freq, symbol, model.FormatDate(start), model.FormatDate(end))

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expiresAt) {
		return e.table, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		t, err := fetch(ctx, symbol, start, end)
		if err != nil {
			return source.Table{}, err
		}
		if t.Len() > 0 {
			c.store(key, t)
		}
		return t, nil
	})
	if err != nil {
		return source.Table{}, err
	}
	return v.(source.Table), nil
}

func (c *Adapter) store(key string, t source.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	now := time.Now()
	c.items[key] = entry{expiresAt: now.Add(c.TTL), table: t}

	// best-effort cap: drop expired entries first, then arbitrary ones
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != key {
				delete(c.items, k)
			}
		}
	}
}

// Len reports the number of cached tables, expired ones included.
func (c *Adapter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
