// Package compare fetches one window from several providers and lines the
// resulting monthly bars up month by month.
package compare

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"monthbars/internal/fetch"
	"monthbars/internal/model"
)

// Fetcher is satisfied by *fetch.Orchestrator.
type Fetcher interface {
	FetchMonthlyBars(ctx context.Context, providerTag, symbol, start, end string) ([]model.MonthlyBar, error)
}

// Quote is one provider's view of a month.
type Quote struct {
	TradeDate string          `json:"trade_date"`
	Open      null.Float      `json:"open"`
	Close     null.Float      `json:"close"`
	PctChg    null.Float      `json:"pct_chg"`
	PctSource model.PctSource `json:"pct_source,omitempty"`
}

// Row is one calendar month across providers.
type Row struct {
	Month  string           `json:"month"`
	Quotes map[string]Quote `json:"quotes"`
	// CloseSpread is (max-min)/min*100 over valid closes; unknown with fewer than two.
	CloseSpread null.Float `json:"close_spread_pct"`
	// PctSpread is max-min over valid pct_chg values, in points.
	PctSpread null.Float `json:"pct_spread"`
}

type Summary struct {
	Provider string `json:"provider"`
	Bars     int    `json:"bars"`
	First    string `json:"first,omitempty"`
	Last     string `json:"last,omitempty"`
	Err      string `json:"error,omitempty"`
}

type Report struct {
	Symbol       string     `json:"symbol"`
	Start        string     `json:"start"`
	End          string     `json:"end"`
	Sources      []Summary  `json:"sources"`
	Rows         []Row      `json:"rows"`
	CommonMonths int        `json:"common_months"`
	MaxPctSpread null.Float `json:"max_pct_spread"`
}

// Run fetches from every provider concurrently. Provider failures are
// reported per source; malformed dates or symbols fail the whole run.
func Run(ctx context.Context, f Fetcher, providers []string, symbol, start, end string) (Report, error) {
	bars := make([][]model.MonthlyBar, len(providers))
	errs := make([]error, len(providers))

	var g errgroup.Group
	g.SetLimit(4)
	for i, p := range providers {
		g.Go(func() error {
			b, err := f.FetchMonthlyBars(ctx, p, symbol, start, end)
			if errors.Is(err, fetch.ErrInvalidDate) || errors.Is(err, fetch.ErrInvalidSymbol) {
				return err
			}
			bars[i], errs[i] = b, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return build(providers, bars, errs, symbol, start, end), nil
}

func build(providers []string, bars [][]model.MonthlyBar, errs []error, symbol, start, end string) Report {
	r := Report{Symbol: symbol, Start: start, End: end, Sources: make([]Summary, len(providers)), Rows: []Row{}}
	rows := make(map[model.MonthKey]*Row)
	for i, p := range providers {
		s := Summary{Provider: p, Bars: len(bars[i])}
		if errs[i] != nil {
			s.Err = errs[i].Error()
		}
		sorted := model.SortBars(bars[i])
		if n := len(sorted); n > 0 {
			s.First, s.Last = sorted[0].TradeDate, sorted[n-1].TradeDate
		}
		r.Sources[i] = s
		for _, b := range sorted {
			row, ok := rows[b.Key()]
			if !ok {
				row = &Row{Month: b.Key().String(), Quotes: make(map[string]Quote, len(providers))}
				rows[b.Key()] = row
			}
			row.Quotes[p] = Quote{TradeDate: b.TradeDate, Open: b.Open, Close: b.Close, PctChg: b.PctChg, PctSource: b.PctSource}
		}
	}

	answered := 0
	for _, s := range r.Sources {
		if s.Bars > 0 {
			answered++
		}
	}
	for _, row := range rows {
		row.CloseSpread = closeSpread(row.Quotes)
		row.PctSpread = pctSpread(row.Quotes)
		if answered > 0 && len(row.Quotes) == answered {
			r.CommonMonths++
		}
		if row.PctSpread.Valid && (!r.MaxPctSpread.Valid || row.PctSpread.Float64 > r.MaxPctSpread.Float64) {
			r.MaxPctSpread = row.PctSpread
		}
		r.Rows = append(r.Rows, *row)
	}
	sort.Slice(r.Rows, func(i, j int) bool { return r.Rows[i].Month < r.Rows[j].Month })
	return r
}

func closeSpread(q map[string]Quote) null.Float {
	lo, hi, n := math.Inf(1), math.Inf(-1), 0
	for _, v := range q {
		if !v.Close.Valid || v.Close.Float64 <= 0 {
			continue
		}
		lo, hi, n = math.Min(lo, v.Close.Float64), math.Max(hi, v.Close.Float64), n+1
	}
	if n < 2 {
		return null.Float{}
	}
	return null.FloatFrom((hi - lo) / lo * 100)
}

func pctSpread(q map[string]Quote) null.Float {
	lo, hi, n := math.Inf(1), math.Inf(-1), 0
	for _, v := range q {
		if !v.PctChg.Valid {
			continue
		}
		lo, hi, n = math.Min(lo, v.PctChg.Float64), math.Max(hi, v.PctChg.Float64), n+1
	}
	if n < 2 {
		return null.Float{}
	}
	return null.FloatFrom(hi - lo)
}
