package tushare

import (
	"context"
	"fmt"
	"strings"
	"time"

	"monthbars/internal/model"
	"monthbars/internal/source"
)

// Tag is the default registry tag of the tushare adapter.
const Tag = "tushare"

var barFields = []string{"ts_code", "trade_date", "open", "high", "low", "close", "pre_close", "pct_chg", "vol", "amount"}

// Config holds the adapter settings that do not belong to the HTTP client.
type Config struct {
	// Tag overrides the registry tag; default "tushare".
	Tag string
	// MonthlyAPI and DailyAPI name the tushare endpoints; defaults "monthly" and "daily".
	MonthlyAPI string
	DailyAPI   string
}

// Adapter serves bars and listing dates from tushare pro.
type Adapter struct {
	cfg    Config
	client *Client
}

func New(cfg Config, client *Client) *Adapter {
	if cfg.Tag == "" {
		cfg.Tag = Tag
	}
	if cfg.MonthlyAPI == "" {
		cfg.MonthlyAPI = "monthly"
	}
	if cfg.DailyAPI == "" {
		cfg.DailyAPI = "daily"
	}
	return &Adapter{cfg: cfg, client: client}
}

func (a *Adapter) Tag() string { return a.cfg.Tag }

// ProviderCode returns the ts_code, which is already the canonical form.
func (a *Adapter) ProviderCode(symbol string) (string, error) {
	code, ex, err := source.SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	if ex == "" {
		return "", fmt.Errorf("tushare: symbol %q has no exchange", symbol)
	}
	return code + "." + ex, nil
}

func (a *Adapter) Headers() source.Headers { return source.DefaultHeaders }

func (a *Adapter) FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return a.bars(ctx, a.cfg.MonthlyAPI, symbol, start, end)
}

func (a *Adapter) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return a.bars(ctx, a.cfg.DailyAPI, symbol, start, end)
}

func (a *Adapter) bars(ctx context.Context, api, symbol string, start, end time.Time) (source.Table, error) {
	code, err := a.ProviderCode(symbol)
	if err != nil {
		return source.Table{}, err
	}
	return a.client.Query(ctx, api, map[string]string{
		"ts_code":    code,
		"start_date": model.FormatDate(start),
		"end_date":   model.FormatDate(end),
	}, barFields)
}

// ListingDate returns the stock_basic list_date of symbol, or "" when
// tushare does not know the symbol.
func (a *Adapter) ListingDate(ctx context.Context, symbol string) (string, error) {
	code, err := a.ProviderCode(symbol)
	if err != nil {
		return "", err
	}
	t, err := a.client.Query(ctx, "stock_basic", map[string]string{"ts_code": code}, []string{"ts_code", "list_date"})
	if err != nil {
		return "", err
	}
	idx := -1
	for i, c := range t.Columns {
		if strings.EqualFold(c, "list_date") {
			idx = i
		}
	}
	if idx < 0 || len(t.Rows) == 0 || idx >= len(t.Rows[0]) {
		return "", nil
	}
	d := strings.TrimSpace(t.Rows[0][idx])
	if _, err := model.ParseDate(d); err != nil {
		return "", nil
	}
	return d, nil
}

var (
	_ source.Adapter       = (*Adapter)(nil)
	_ source.ListingSource = (*Adapter)(nil)
)
