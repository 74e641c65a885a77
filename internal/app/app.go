// Package app wires configuration into providers, stores and the orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"monthbars/internal/anchor"
	"monthbars/internal/config"
	"monthbars/internal/fetch"
	"monthbars/internal/httpx"
	"monthbars/internal/source"
	"monthbars/internal/source/akshare"
	"monthbars/internal/source/baostock"
	"monthbars/internal/source/bridge"
	"monthbars/internal/source/cache"
	"monthbars/internal/source/finnhub"
	"monthbars/internal/source/ratelimit"
	"monthbars/internal/source/tushare"
	"monthbars/internal/store"
	"monthbars/internal/store/memory"
	"monthbars/internal/store/parquetfile"
	"monthbars/internal/store/postgres"
	"monthbars/internal/store/sqlite"
)

type App struct {
	Config       config.Config
	Log          *slog.Logger
	Registry     *source.Registry
	Store        store.Store
	Listings     *anchor.Resolver
	Orchestrator *fetch.Orchestrator
}

// New builds every component from cfg. The caller owns Close.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	reg, err := NewRegistry(cfg, log)
	if err != nil {
		return nil, err
	}
	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	var authority source.ListingSource
	if a, ok := reg.Get(cfg.Fetch.AuthorityProvider); ok {
		authority, _ = source.AsListingSource(a)
	}
	if authority == nil {
		log.Warn("no authoritative listing source; first-month anchoring relies on stored listing dates",
			"provider", cfg.Fetch.AuthorityProvider)
	}
	listings := anchor.New(anchor.Config{
		AuthorityTag: cfg.Fetch.AuthorityProvider,
		Timeout:      cfg.Fetch.AuthorityTimeout(),
	}, st, authority, log)

	orch := fetch.New(fetch.Config{
		MonthlyTimeout: cfg.Fetch.MonthlyTimeout(),
		PriorTimeout:   cfg.Fetch.PriorTimeout(),
		Policy:         cfg.Reconcile,
	}, reg, listings, log)

	return &App{
		Config:       cfg,
		Log:          log,
		Registry:     reg,
		Store:        st,
		Listings:     listings,
		Orchestrator: orch,
	}, nil
}

func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

// NewRegistry builds the enabled provider adapters, each wrapped in its
// rate limit and cache decorators.
func NewRegistry(cfg config.Config, log *slog.Logger) (*source.Registry, error) {
	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	reg := source.NewRegistry()

	if cfg.Tushare.Enabled {
		client, err := tushare.NewClient(cfg.Tushare.Token,
			tushare.WithBaseURL(cfg.Tushare.Endpoint),
			tushare.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("tushare: %w", err)
		}
		reg.Register(Decorate(tushare.New(tushare.Config{}, client), cfg.Tushare.Limits))
	}

	if cfg.Akshare.Enabled || cfg.Baostock.Enabled {
		br, err := bridge.New(cfg.Bridge.URL,
			bridge.WithHTTPClient(httpx.New(time.Duration(cfg.Bridge.TimeoutSec)*time.Second)))
		if err != nil {
			return nil, fmt.Errorf("bridge: %w", err)
		}
		if cfg.Akshare.Enabled {
			reg.Register(Decorate(akshare.New(akshare.Config{Adjust: cfg.Akshare.Adjust}, br), cfg.Akshare.Limits))
		}
		if cfg.Baostock.Enabled {
			a := baostock.New(baostock.Config{AdjustFlag: cfg.Baostock.AdjustFlag}, baostock.BridgeDialer{Caller: br}, log)
			reg.Register(Decorate(a, cfg.Baostock.Limits))
		}
	}

	if cfg.Finnhub.Enabled {
		if cfg.Finnhub.APIKey == "" {
			return nil, errors.New("finnhub: api key not set")
		}
		a := finnhub.New(finnhub.Config{
			URL:       cfg.Finnhub.Endpoint,
			APIKey:    cfg.Finnhub.APIKey,
			Exchanges: cfg.Finnhub.Exchanges,
		}, httpClient)
		reg.Register(Decorate(a, cfg.Finnhub.Limits))
	}

	if len(reg.Tags()) == 0 {
		return nil, errors.New("no provider enabled")
	}
	return reg, nil
}

// Decorate applies the limits: a token bucket when an RPM budget is set,
// otherwise a minimum interval, and a table cache outermost.
func Decorate(a source.Adapter, l config.Limits) source.Adapter {
	if tb := ratelimit.PerMinute(l.MaxRequestsPerMinute, l.Burst); tb != nil {
		a = &ratelimit.TokenBucketAdapter{Adapter: a, TB: tb}
	} else if l.MinRequestIntervalMs > 0 {
		a = &ratelimit.MinInterval{Adapter: a, Interval: time.Duration(l.MinRequestIntervalMs) * time.Millisecond}
	}
	if l.CacheTTLSeconds > 0 {
		a = &cache.Adapter{Adapter: a, TTL: time.Duration(l.CacheTTLSeconds) * time.Second, MaxItems: l.CacheMaxItems}
	}
	return a
}

// OpenStore opens the configured backend, mirrored to parquet files when
// cfg.ParquetDir is set.
func OpenStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Driver {
	case store.DriverMemory, "":
		st = memory.New()
	case store.DriverSQLite:
		st, err = sqlite.Open(ctx, cfg.SQLitePath)
	case store.DriverPostgres:
		st, err = postgres.Open(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if cfg.ParquetDir != "" {
		st = store.Mirrored{Store: st, Mirrors: []store.BarStore{parquetfile.New(cfg.ParquetDir)}}
	}
	return st, nil
}
