package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the canonical YYYYMMDD date format used on every boundary.
const DateLayout = "20060102"

// PctSource records where a bar's pct_chg value came from.
type PctSource string

const (
	// PctRaw is a vendor value whose unit (fraction or percent) has not been decided yet.
	PctRaw PctSource = ""
	// PctVendor is a vendor value that passed the plausibility checks.
	PctVendor PctSource = "vendor"
	// PctPrevClose is computed against the previous month's close.
	PctPrevClose PctSource = "prev_close"
	// PctListingOpen is computed against the open of the listing month.
	PctListingOpen PctSource = "listing_open"
	// PctOpenFallback is computed against the bar's own open because no
	// predecessor was available. Lower confidence than PctPrevClose.
	PctOpenFallback PctSource = "open_fallback"
)

// Computed reports whether the value was produced by reconciliation rather than a vendor.
func (s PctSource) Computed() bool {
	switch s {
	case PctPrevClose, PctListingOpen, PctOpenFallback:
		return true
	}
	return false
}

// MonthlyBar is one instrument over one calendar month.
// TradeDate is the representative trading day and always agrees with Year/Month.
type MonthlyBar struct {
	Symbol    string     `json:"symbol"`
	TradeDate string     `json:"trade_date"`
	Year      int        `json:"year"`
	Month     int        `json:"month"`
	Open      null.Float `json:"open"`
	Close     null.Float `json:"close"`
	High      null.Float `json:"high"`
	Low       null.Float `json:"low"`
	Volume    null.Float `json:"volume"`
	Amount    null.Float `json:"amount"`
	PctChg    null.Float `json:"pct_chg"`
	PctSource PctSource  `json:"pct_source,omitempty"`
}

// NewMonthlyBar returns a bar whose TradeDate, Year and Month are derived from date.
func NewMonthlyBar(symbol string, date time.Time) MonthlyBar {
	return MonthlyBar{
		Symbol:    symbol,
		TradeDate: FormatDate(date),
		Year:      date.Year(),
		Month:     int(date.Month()),
	}
}

// Key returns the calendar month of the bar.
func (b MonthlyBar) Key() MonthKey { return MonthKey{Year: b.Year, Month: b.Month} }

// Validate checks that TradeDate parses and agrees with Year/Month.
func (b MonthlyBar) Validate() error {
	d, err := ParseDate(b.TradeDate)
	if err != nil {
		return err
	}
	if d.Year() != b.Year || int(d.Month()) != b.Month {
		return fmt.Errorf("bar %s %s: year/month %d-%02d disagree with trade_date", b.Symbol, b.TradeDate, b.Year, b.Month)
	}
	return nil
}

// RawBar is one provider row after column mapping, monthly or daily.
type RawBar struct {
	Date   time.Time
	Open   null.Float
	Close  null.Float
	High   null.Float
	Low    null.Float
	Volume null.Float
	Amount null.Float
	PctChg null.Float
}

// ToMonthly converts a provider monthly row into a canonical bar.
func (r RawBar) ToMonthly(symbol string) MonthlyBar {
	b := NewMonthlyBar(symbol, r.Date)
	b.Open = r.Open
	b.Close = r.Close
	b.High = r.High
	b.Low = r.Low
	b.Volume = r.Volume
	b.Amount = r.Amount
	b.PctChg = r.PctChg
	return b
}

// ListingRecord is the listing metadata of one instrument. ListDate is "" when unknown.
type ListingRecord struct {
	Symbol   string `json:"symbol"`
	ListDate string `json:"list_date"`
}

// SortBars returns a copy of bars ordered by ascending TradeDate.
func SortBars(bars []MonthlyBar) []MonthlyBar {
	out := make([]MonthlyBar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TradeDate < out[j].TradeDate })
	return out
}

// Dedupe returns bars sorted by TradeDate with exactly one bar per
// (symbol, year, month). The bar with the latest TradeDate wins.
func Dedupe(bars []MonthlyBar) []MonthlyBar {
	sorted := SortBars(bars)
	type key struct {
		symbol string
		month  MonthKey
	}
	idx := make(map[key]int, len(sorted))
	out := make([]MonthlyBar, 0, len(sorted))
	for _, b := range sorted {
		k := key{b.Symbol, b.Key()}
		if i, ok := idx[k]; ok {
			out[i] = b
			continue
		}
		idx[k] = len(out)
		out = append(out, b)
	}
	return out
}
