// Package reconcile decides the month-over-month percent change of monthly
// bars: it normalizes vendor units, drops implausible vendor values and
// computes the missing ones from open/close anchors. It performs no I/O.
package reconcile

import (
	"math"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"monthbars/internal/model"
)

// Policy holds the reconciliation thresholds. Values are in percentage points.
type Policy struct {
	// MaxAbsPct caps any output value; larger magnitudes are never a real monthly move.
	MaxAbsPct float64 `json:"max_abs_pct" yaml:"max_abs_pct"`
	// A vendor value is corrupted when it deviates from the open-anchored value
	// by more than MaxDeviation and its magnitude exceeds DeviationFloor.
	MaxDeviation   float64 `json:"max_deviation" yaml:"max_deviation"`
	DeviationFloor float64 `json:"deviation_floor" yaml:"deviation_floor"`
	// FirstMonthTolerance is how far a vendor value for the listing month may
	// stray from the open-anchored value before it is replaced.
	FirstMonthTolerance float64 `json:"first_month_tolerance" yaml:"first_month_tolerance"`
	// FractionalCeiling: a batch whose raw values are all below it in magnitude
	// is in fraction units and gets multiplied by 100.
	FractionalCeiling float64 `json:"fractional_ceiling" yaml:"fractional_ceiling"`
	// Precision is the number of decimals kept on computed values.
	Precision int32 `json:"precision" yaml:"precision"`
}

// DefaultPolicy returns the thresholds validated against real vendor data.
func DefaultPolicy() Policy {
	return Policy{
		MaxAbsPct:           500,
		MaxDeviation:        50,
		DeviationFloor:      100,
		FirstMonthTolerance: 10,
		FractionalCeiling:   1,
		Precision:           4,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAbsPct <= 0 {
		p.MaxAbsPct = d.MaxAbsPct
	}
	if p.MaxDeviation <= 0 {
		p.MaxDeviation = d.MaxDeviation
	}
	if p.DeviationFloor <= 0 {
		p.DeviationFloor = d.DeviationFloor
	}
	if p.FirstMonthTolerance <= 0 {
		p.FirstMonthTolerance = d.FirstMonthTolerance
	}
	if p.FractionalCeiling <= 0 {
		p.FractionalCeiling = d.FractionalCeiling
	}
	if p.Precision <= 0 {
		p.Precision = d.Precision
	}
	return p
}

// Anchors is what the engine knows beyond the bars themselves.
type Anchors struct {
	// ListDate is the instrument's listing date (YYYYMMDD) or "" when unknown.
	ListDate string
	// Prior is the bar of the month before the batch, if known. It anchors the
	// first bar of the batch and is not part of the output.
	Prior *model.MonthlyBar
}

// Reconcile applies the default policy. listDate may be "".
func Reconcile(bars []model.MonthlyBar, listDate string) []model.MonthlyBar {
	return DefaultPolicy().Reconcile(bars, Anchors{ListDate: listDate})
}

// Reconcile returns a new slice, sorted by trade date with one bar per month,
// in which every pct_chg is either a plausible vendor value, a computed value
// or unknown. The input is not modified. Running it over its own output
// changes nothing.
func (p Policy) Reconcile(bars []model.MonthlyBar, a Anchors) []model.MonthlyBar {
	p = p.withDefaults()
	out := model.Dedupe(bars)
	if len(out) == 0 {
		return out
	}

	p.normalizeUnits(out)

	type key struct {
		symbol string
		month  model.MonthKey
	}
	closes := make(map[key]null.Float, len(out)+1)
	if a.Prior != nil {
		closes[key{a.Prior.Symbol, a.Prior.Key()}] = a.Prior.Close
	}
	for _, b := range out {
		closes[key{b.Symbol, b.Key()}] = b.Close
	}

	listMonth, hasListing := listingMonth(a.ListDate)

	for i := range out {
		b := &out[i]
		first := hasListing && b.Key() == listMonth
		manual, hasManual := openAnchored(*b)

		// Step 2: vendor values must be finite, capped and consistent with open/close.
		if b.PctChg.Valid && !b.PctSource.Computed() {
			v := b.PctChg.Float64
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > p.MaxAbsPct:
				b.PctChg, b.PctSource = null.Float{}, model.PctRaw
			case hasManual && math.Abs(v-manual) > p.MaxDeviation && math.Abs(v) > p.DeviationFloor:
				b.PctChg, b.PctSource = null.Float{}, model.PctRaw
			default:
				b.PctSource = model.PctVendor
			}
		}
		// Computed values from an earlier pass are kept unless they break the cap.
		if b.PctChg.Valid && b.PctSource.Computed() && math.Abs(b.PctChg.Float64) > p.MaxAbsPct {
			b.PctChg, b.PctSource = null.Float{}, model.PctRaw
		}

		// Step 4: the listing month is anchored to its own open.
		if first && hasManual && b.PctSource == model.PctVendor &&
			math.Abs(b.PctChg.Float64-manual) > p.FirstMonthTolerance {
			p.set(b, manual, model.PctListingOpen)
			continue
		}
		if b.PctChg.Valid {
			continue
		}

		// Step 3: compute what is missing.
		switch prev := closes[key{b.Symbol, b.Key().Prev()}]; {
		case first && hasManual:
			p.set(b, manual, model.PctListingOpen)
		case !first && b.Close.Valid && prev.Valid && prev.Float64 > 0:
			p.set(b, (b.Close.Float64-prev.Float64)/prev.Float64*100, model.PctPrevClose)
		case hasManual:
			p.set(b, manual, model.PctOpenFallback)
		}
	}
	return out
}

// normalizeUnits is Step 1. Only raw vendor values take part: accepted and
// computed values are already in percent, which keeps a second pass a no-op.
func (p Policy) normalizeUnits(bars []model.MonthlyBar) {
	maxAbs, n := 0.0, 0
	for _, b := range bars {
		if b.PctChg.Valid && b.PctSource == model.PctRaw {
			maxAbs = math.Max(maxAbs, math.Abs(b.PctChg.Float64))
			n++
		}
	}
	if n == 0 || maxAbs >= p.FractionalCeiling {
		return
	}
	for i := range bars {
		if bars[i].PctChg.Valid && bars[i].PctSource == model.PctRaw {
			bars[i].PctChg = null.FloatFrom(bars[i].PctChg.Float64 * 100)
		}
	}
}

// set stores a computed value, leaving the bar unknown when it breaks the cap.
func (p Policy) set(b *model.MonthlyBar, v float64, src model.PctSource) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > p.MaxAbsPct {
		b.PctChg, b.PctSource = null.Float{}, model.PctRaw
		return
	}
	r := decimal.NewFromFloat(v).Round(p.Precision).InexactFloat64()
	b.PctChg, b.PctSource = null.FloatFrom(r), src
}

func openAnchored(b model.MonthlyBar) (float64, bool) {
	if !b.Open.Valid || !b.Close.Valid || b.Open.Float64 <= 0 {
		return 0, false
	}
	return (b.Close.Float64 - b.Open.Float64) / b.Open.Float64 * 100, true
}

func listingMonth(listDate string) (model.MonthKey, bool) {
	if listDate == "" {
		return model.MonthKey{}, false
	}
	d, err := model.ParseDate(listDate)
	if err != nil {
		return model.MonthKey{}, false
	}
	return model.MonthOf(d), true
}

// IsFirstTradableMonth reports whether year/month contains listDate.
// An unknown or malformed listDate is never a first month.
func IsFirstTradableMonth(listDate string, year, month int) bool {
	k, ok := listingMonth(listDate)
	return ok && k == model.MonthKey{Year: year, Month: month}
}

// Changed counts the bars of after whose pct_chg or its source differs from
// the bar of the same month in before.
func Changed(before, after []model.MonthlyBar) int {
	type key struct {
		symbol string
		month  model.MonthKey
	}
	prev := make(map[key]model.MonthlyBar, len(before))
	for _, b := range before {
		prev[key{b.Symbol, b.Key()}] = b
	}
	n := 0
	for _, b := range after {
		old, ok := prev[key{b.Symbol, b.Key()}]
		if !ok || old.PctSource != b.PctSource || !old.PctChg.Equal(b.PctChg) {
			n++
		}
	}
	return n
}

