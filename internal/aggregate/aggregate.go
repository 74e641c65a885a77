package aggregate

import (
	"sort"

	"github.com/guregu/null/v6"

	"monthbars/internal/model"
)

// Monthly collapses daily rows into one bar per calendar month, ascending.
//
//   - Open: first valid open of the month, chronologically.
//   - Close: last valid close of the month.
//   - High/Low: extremes over each day's high/low, falling back to that day's close.
//   - Volume/Amount: sums; missing values count as zero.
//   - TradeDate: the month's last trading day.
//
// PctChg is left unknown; reconciliation computes it. The input is not modified.
func Monthly(symbol string, daily []model.RawBar) []model.MonthlyBar {
	if len(daily) == 0 {
		return nil
	}
	rows := make([]model.RawBar, len(daily))
	copy(rows, daily)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

	out := make([]model.MonthlyBar, 0, len(rows)/20+1)
	var cur *model.MonthlyBar
	var volume, amount float64
	flush := func() {
		if cur == nil {
			return
		}
		cur.Volume = null.FloatFrom(volume)
		cur.Amount = null.FloatFrom(amount)
		out = append(out, *cur)
	}

	for _, r := range rows {
		if cur == nil || model.MonthOf(r.Date) != cur.Key() {
			flush()
			b := model.NewMonthlyBar(symbol, r.Date)
			cur = &b
			volume, amount = 0, 0
		}
		// last row of the month wins the representative date
		cur.TradeDate = model.FormatDate(r.Date)

		if !cur.Open.Valid && r.Open.Valid {
			cur.Open = r.Open
		}
		if r.Close.Valid {
			cur.Close = r.Close
		}
		if hi := orClose(r.High, r.Close); hi.Valid && (!cur.High.Valid || hi.Float64 > cur.High.Float64) {
			cur.High = hi
		}
		if lo := orClose(r.Low, r.Close); lo.Valid && (!cur.Low.Valid || lo.Float64 < cur.Low.Float64) {
			cur.Low = lo
		}
		volume += r.Volume.ValueOrZero()
		amount += r.Amount.ValueOrZero()
	}
	flush()
	return out
}

func orClose(v, closePx null.Float) null.Float {
	if v.Valid {
		return v
	}
	return closePx
}
