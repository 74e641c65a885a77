// Package fetch turns one (provider, symbol, window) request into reconciled
// monthly bars, falling back from the provider's monthly endpoint to daily
// rows aggregated by month.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"monthbars/internal/aggregate"
	"monthbars/internal/executor"
	"monthbars/internal/model"
	"monthbars/internal/reconcile"
	"monthbars/internal/source"
)

// Programmer errors. Everything else degrades to an empty result.
var (
	ErrUnknownProvider = errors.New("fetch: unknown provider")
	ErrInvalidDate     = errors.New("fetch: invalid date")
	ErrInvalidSymbol   = errors.New("fetch: invalid symbol")
)

// ListingResolver supplies listing dates; *anchor.Resolver implements it.
type ListingResolver interface {
	ListingDate(ctx context.Context, providerTag, symbol string) (string, bool)
}

// Config holds per-call budgets. Each call gets its own budget; they do not add up.
type Config struct {
	// MonthlyTimeout bounds the monthly and daily calls. Default 30s.
	MonthlyTimeout time.Duration
	// PriorTimeout bounds the prior-month anchor lookup. Default 15s.
	PriorTimeout time.Duration
	Policy       reconcile.Policy
}

// Request is one fetch. Dates are YYYYMMDD and inclusive.
type Request struct {
	Provider string `json:"provider"`
	Symbol   string `json:"symbol"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// Result carries the bars plus the trail of provider calls that produced them.
type Result struct {
	Symbol   string             `json:"symbol"`
	Provider string             `json:"provider"`
	ListDate string             `json:"list_date,omitempty"`
	Strategy Strategy           `json:"strategy,omitempty"`
	Bars     []model.MonthlyBar `json:"bars"`
	Attempts []Attempt          `json:"attempts"`
}

type Orchestrator struct {
	cfg      Config
	registry *source.Registry
	listings ListingResolver
	log      *slog.Logger
}

// New builds an orchestrator. listings may be nil.
func New(cfg Config, registry *source.Registry, listings ListingResolver, log *slog.Logger) *Orchestrator {
	if cfg.MonthlyTimeout <= 0 {
		cfg.MonthlyTimeout = executor.DefaultTimeout
	}
	if cfg.PriorTimeout <= 0 {
		cfg.PriorTimeout = 15 * time.Second
	}
	if cfg.Policy == (reconcile.Policy{}) {
		cfg.Policy = reconcile.DefaultPolicy()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{cfg: cfg, registry: registry, listings: listings, log: log}
}

// Providers lists the registered provider tags.
func (o *Orchestrator) Providers() []string { return o.registry.Tags() }

// FetchMonthlyBars returns reconciled bars for symbol over [start, end].
// An empty slice means every path failed; only malformed requests are errors.
func (o *Orchestrator) FetchMonthlyBars(ctx context.Context, providerTag, symbol, start, end string) ([]model.MonthlyBar, error) {
	res, err := o.Fetch(ctx, Request{Provider: providerTag, Symbol: symbol, Start: start, End: end})
	if err != nil {
		return nil, err
	}
	return res.Bars, nil
}

type job struct {
	adapter    source.Adapter
	symbol     string
	start, end time.Time
	res        *Result
}

// Fetch is FetchMonthlyBars with the attempt trail.
func (o *Orchestrator) Fetch(ctx context.Context, req Request) (Result, error) {
	j, err := o.validate(req)
	if err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		return *j.res, nil
	}

	bars, prior, ok := o.monthly(ctx, j)
	if !ok {
		if ctx.Err() != nil {
			return *j.res, nil
		}
		bars, prior, ok = o.daily(ctx, j)
		if !ok {
			o.log.Warn("no monthly bars from any path", "provider", j.adapter.Tag(), "symbol", j.symbol,
				"start", req.Start, "end", req.End)
			return *j.res, nil
		}
	}

	if o.listings != nil {
		if d, known := o.listings.ListingDate(ctx, j.adapter.Tag(), j.symbol); known {
			j.res.ListDate = d
		}
	}
	j.res.Bars = o.cfg.Policy.Reconcile(bars, reconcile.Anchors{ListDate: j.res.ListDate, Prior: prior})
	return *j.res, nil
}

func (o *Orchestrator) validate(req Request) (*job, error) {
	a, ok := o.registry.Get(req.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	start, err := model.ParseDate(req.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrInvalidDate, err)
	}
	end, err := model.ParseDate(req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrInvalidDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidDate, req.Start, req.End)
	}
	symbol, err := source.CanonicalSymbol(req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}
	return &job{
		adapter: a,
		symbol:  symbol,
		start:   start,
		end:     end,
		res:     &Result{Symbol: symbol, Provider: a.Tag(), Bars: []model.MonthlyBar{}, Attempts: []Attempt{}},
	}, nil
}

// monthly is the primary path: provider monthly bars restricted to the window's
// months. A returned row for the month before the first bar becomes its anchor.
func (o *Orchestrator) monthly(ctx context.Context, j *job) ([]model.MonthlyBar, *model.MonthlyBar, bool) {
	rows, ok := o.call(ctx, j, StrategyMonthly, j.start, j.end, o.cfg.MonthlyTimeout, j.adapter.FetchMonthly)
	if !ok {
		return nil, nil, false
	}
	first, last := model.MonthOf(j.start), model.MonthOf(j.end)
	bars := make([]model.MonthlyBar, 0, len(rows))
	var before []model.MonthlyBar
	for _, r := range rows {
		switch k := model.MonthOf(r.Date); {
		case k.Before(first):
			before = append(before, r.ToMonthly(j.symbol))
		case last.Before(k):
		default:
			bars = append(bars, r.ToMonthly(j.symbol))
		}
	}
	if len(bars) == 0 {
		j.markLast(OutcomeEmpty)
		return nil, nil, false
	}
	j.res.Strategy = StrategyMonthly
	bars = model.SortBars(bars)
	return bars, monthlyPrior(before, bars[0].Key().Prev()), true
}

// monthlyPrior returns the latest bar of month k that has a close.
func monthlyPrior(bars []model.MonthlyBar, k model.MonthKey) *model.MonthlyBar {
	var prior *model.MonthlyBar
	for i := range bars {
		b := &bars[i]
		if b.Key() != k || !b.Close.Valid {
			continue
		}
		if prior == nil || b.TradeDate > prior.TradeDate {
			prior = b
		}
	}
	return prior
}

// daily is the fallback: daily rows over the window extended back one month,
// aggregated per month. Rows before the window anchor the first month. A
// separate prior call is made only for an anchor month the extended call did
// not cover.
func (o *Orchestrator) daily(ctx context.Context, j *job) ([]model.MonthlyBar, *model.MonthlyBar, bool) {
	prevMonth := model.MonthOf(j.start).Prev()
	rows, ok := o.call(ctx, j, StrategyDaily, prevMonth.First(), j.end, o.cfg.MonthlyTimeout, j.adapter.FetchDaily)
	if !ok {
		return nil, nil, false
	}

	var window, before []model.RawBar
	for _, r := range rows {
		switch {
		case r.Date.Before(j.start):
			before = append(before, r)
		case r.Date.After(j.end):
		default:
			window = append(window, r)
		}
	}
	bars := aggregate.Monthly(j.symbol, window)
	if len(bars) == 0 {
		j.markLast(OutcomeEmpty)
		return nil, nil, false
	}
	j.res.Strategy = StrategyDaily

	anchorMonth := bars[0].Key().Prev()
	if prior := priorBar(j.symbol, before, anchorMonth); prior != nil {
		return bars, prior, true
	}
	if anchorMonth == prevMonth {
		return bars, nil, true
	}
	return bars, o.prior(ctx, j, anchorMonth), true
}

// prior fetches the daily rows of month k to anchor the first aggregated
// month. Failure only loses the anchor.
func (o *Orchestrator) prior(ctx context.Context, j *job, k model.MonthKey) *model.MonthlyBar {
	if ctx.Err() != nil {
		return nil
	}
	rows, ok := o.call(ctx, j, StrategyPrior, k.First(), k.Last(), o.cfg.PriorTimeout, j.adapter.FetchDaily)
	if !ok {
		return nil
	}
	return priorBar(j.symbol, rows, k)
}

func priorBar(symbol string, rows []model.RawBar, k model.MonthKey) *model.MonthlyBar {
	var in []model.RawBar
	for _, r := range rows {
		if model.MonthOf(r.Date) == k {
			in = append(in, r)
		}
	}
	bars := aggregate.Monthly(symbol, in)
	if len(bars) == 0 || !bars[0].Close.Valid {
		return nil
	}
	return &bars[0]
}

type fetchFunc func(ctx context.Context, symbol string, start, end time.Time) (source.Table, error)

// call runs one bounded provider call, maps its rows and records the attempt.
// ok is false on any failure or when no rows came back.
func (o *Orchestrator) call(ctx context.Context, j *job, strategy Strategy, start, end time.Time, timeout time.Duration, fn fetchFunc) ([]model.RawBar, bool) {
	att := Attempt{
		ID:       uuid.NewString(),
		Source:   j.adapter.Tag(),
		Symbol:   j.symbol,
		Start:    model.FormatDate(start),
		End:      model.FormatDate(end),
		Strategy: strategy,
	}
	began := time.Now()
	tbl, err := executor.Run(ctx, timeout, func(ctx context.Context) (source.Table, error) {
		return fn(ctx, j.symbol, start, end)
	})
	var rows []model.RawBar
	if err == nil {
		rows, err = source.MapTable(tbl, j.adapter.Headers())
	}
	att.Elapsed = time.Since(began)
	att.Outcome = classify(err)
	att.Rows = len(rows)
	if err != nil {
		att.Err = err.Error()
	} else if len(rows) == 0 {
		att.Outcome = OutcomeEmpty
	}
	j.res.Attempts = append(j.res.Attempts, att)
	o.logAttempt(att)
	return rows, att.Outcome == OutcomeSuccess
}

func (j *job) markLast(out Outcome) {
	if n := len(j.res.Attempts); n > 0 {
		j.res.Attempts[n-1].Outcome = out
	}
}

func (o *Orchestrator) logAttempt(a Attempt) {
	attrs := []any{
		"attempt_id", a.ID,
		"provider", a.Source,
		"symbol", a.Symbol,
		"strategy", a.Strategy,
		"outcome", a.Outcome,
		"rows", a.Rows,
		"elapsed", a.Elapsed,
	}
	if a.Outcome == OutcomeSuccess {
		o.log.Debug("provider call", attrs...)
		return
	}
	if a.Err != "" {
		attrs = append(attrs, "err", a.Err)
	}
	o.log.Warn("provider call failed", attrs...)
}
