// Package akshare adapts akshare's stock_zh_a_hist through the SDK bridge.
package akshare

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monthbars/internal/model"
	"monthbars/internal/source"
)

const Tag = "akshare"

// Caller invokes an SDK function; *bridge.Client implements it.
type Caller interface {
	Call(ctx context.Context, fn string, args map[string]any) (source.Table, error)
}

// Chinese column names returned by stock_zh_a_hist.
var headers = source.DefaultHeaders.With(source.Headers{
	source.FieldDate:   {"日期"},
	source.FieldOpen:   {"开盘"},
	source.FieldClose:  {"收盘"},
	source.FieldHigh:   {"最高"},
	source.FieldLow:    {"最低"},
	source.FieldVolume: {"成交量"},
	source.FieldAmount: {"成交额"},
	source.FieldPctChg: {"涨跌幅"},
})

// Older akshare releases accept only the Chinese period name.
var monthlyPeriods = []string{"monthly", "月"}

type Config struct {
	Tag string
	// Adjust is the price adjustment; default "qfq" (forward-adjusted).
	Adjust string
}

type Adapter struct {
	cfg    Config
	caller Caller
}

func New(cfg Config, caller Caller) *Adapter {
	if cfg.Tag == "" {
		cfg.Tag = Tag
	}
	if cfg.Adjust == "" {
		cfg.Adjust = "qfq"
	}
	return &Adapter{cfg: cfg, caller: caller}
}

func (a *Adapter) Tag() string { return a.cfg.Tag }

// ProviderCode strips the exchange: akshare takes bare 6-digit codes.
func (a *Adapter) ProviderCode(symbol string) (string, error) {
	code, ex, err := source.SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	if ex == "" {
		return "", fmt.Errorf("akshare: %q is not an A-share code", symbol)
	}
	return code, nil
}

func (a *Adapter) Headers() source.Headers { return headers }

// FetchMonthly tries each known spelling of the monthly period and returns
// the first that yields a table carrying date/open/close.
func (a *Adapter) FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	var errs []error
	for _, period := range monthlyPeriods {
		t, err := a.hist(ctx, symbol, period, start, end)
		if err == nil {
			if _, rerr := headers.Resolve(t.Columns); rerr != nil && t.Len() > 0 {
				err = rerr
			}
		}
		if err == nil {
			return t, nil
		}
		if errors.Is(err, source.ErrUnsupported) || ctx.Err() != nil {
			return source.Table{}, err
		}
		errs = append(errs, fmt.Errorf("period %s: %w", period, err))
	}
	return source.Table{}, errors.Join(errs...)
}

func (a *Adapter) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return a.hist(ctx, symbol, "daily", start, end)
}

func (a *Adapter) hist(ctx context.Context, symbol, period string, start, end time.Time) (source.Table, error) {
	code, err := a.ProviderCode(symbol)
	if err != nil {
		return source.Table{}, err
	}
	return a.caller.Call(ctx, "akshare/stock_zh_a_hist", map[string]any{
		"symbol":     code,
		"period":     period,
		"start_date": model.FormatDate(start),
		"end_date":   model.FormatDate(end),
		"adjust":     a.cfg.Adjust,
	})
}

var _ source.Adapter = (*Adapter)(nil)
