// Package anchor answers whether a month is an instrument's first tradable
// month, looking the listing date up in process memory, then the listing
// store, then an authoritative provider.
package anchor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"monthbars/internal/executor"
	"monthbars/internal/model"
	"monthbars/internal/reconcile"
	"monthbars/internal/source"
	"monthbars/internal/store"
)

// Config selects the authoritative listing source.
type Config struct {
	// AuthorityTag is the provider tag whose requests may consult Authority.
	AuthorityTag string
	// Timeout bounds the authority call; default executor.DefaultTimeout.
	Timeout time.Duration
}

// Resolver is safe for concurrent use. The authority is consulted at most
// once per symbol for the life of the Resolver.
type Resolver struct {
	cfg       Config
	store     store.ListingStore
	authority source.ListingSource
	log       *slog.Logger

	mu        sync.RWMutex
	known     map[string]string
	attempted map[string]bool
	sf        singleflight.Group
}

// New builds a resolver. listings and authority may be nil.
func New(cfg Config, listings store.ListingStore, authority source.ListingSource, log *slog.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = executor.DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		cfg:       cfg,
		store:     listings,
		authority: authority,
		log:       log,
		known:     make(map[string]string),
		attempted: make(map[string]bool),
	}
}

// ListingDate returns the listing date of symbol (YYYYMMDD) and whether it is known.
// providerTag is the provider serving the current request; the authority is
// only asked when it serves the request too. A lookup abandoned because ctx
// ended does not use up the symbol's one authority round trip.
func (r *Resolver) ListingDate(ctx context.Context, providerTag, symbol string) (string, bool) {
	r.mu.RLock()
	d, ok := r.known[symbol]
	r.mu.RUnlock()
	if ok {
		return d, true
	}

	if r.store != nil {
		d, err := r.store.GetListingDate(ctx, symbol)
		if err != nil {
			r.log.Warn("listing store lookup failed", "symbol", symbol, "err", err)
		} else if valid(d) {
			r.remember(symbol, d)
			return d, true
		}
	}

	if r.authority == nil || providerTag != r.cfg.AuthorityTag || ctx.Err() != nil {
		return "", false
	}
	v, _, _ := r.sf.Do(symbol, func() (any, error) {
		r.mu.Lock()
		if d, ok := r.known[symbol]; ok {
			r.mu.Unlock()
			return d, nil
		}
		if r.attempted[symbol] {
			r.mu.Unlock()
			return "", nil
		}
		r.attempted[symbol] = true
		r.mu.Unlock()

		d := r.askAuthority(ctx, symbol)
		if d == "" && ctx.Err() != nil {
			// the caller gave up; the lookup did not count
			r.mu.Lock()
			delete(r.attempted, symbol)
			r.mu.Unlock()
		}
		return d, nil
	})
	d, _ = v.(string)
	return d, d != ""
}

func (r *Resolver) askAuthority(ctx context.Context, symbol string) string {
	d, err := executor.Run(ctx, r.cfg.Timeout, func(ctx context.Context) (string, error) {
		return r.authority.ListingDate(ctx, symbol)
	})
	if err != nil {
		r.log.Warn("listing date lookup failed", "symbol", symbol, "provider", r.cfg.AuthorityTag, "err", err)
		return ""
	}
	if !valid(d) {
		r.log.Debug("listing date unknown to authority", "symbol", symbol)
		return ""
	}
	r.remember(symbol, d)
	if r.store != nil {
		if err := r.store.SetListingDate(ctx, symbol, d); err != nil {
			r.log.Warn("listing date write-back failed", "symbol", symbol, "err", err)
		}
	}
	return d
}

// IsFirstTradableMonth reports whether year/month is the month symbol listed in.
// Unknown listing dates yield false.
func (r *Resolver) IsFirstTradableMonth(ctx context.Context, providerTag, symbol string, year, month int) bool {
	d, ok := r.ListingDate(ctx, providerTag, symbol)
	return ok && reconcile.IsFirstTradableMonth(d, year, month)
}

func (r *Resolver) remember(symbol, date string) {
	r.mu.Lock()
	r.known[symbol] = date
	r.mu.Unlock()
}

func valid(d string) bool {
	if d == "" {
		return false
	}
	_, err := model.ParseDate(d)
	return err == nil
}
