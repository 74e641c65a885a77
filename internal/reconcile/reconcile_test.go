package reconcile

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/require"

	"monthbars/internal/model"
)

func bar(date string, open, closePx float64, pct ...float64) model.MonthlyBar {
	d, err := model.ParseDate(date)
	if err != nil {
		panic(err)
	}
	b := model.NewMonthlyBar("000001.SZ", d)
	b.Open = null.FloatFrom(open)
	b.Close = null.FloatFrom(closePx)
	if len(pct) > 0 {
		b.PctChg = null.FloatFrom(pct[0])
	}
	return b
}

func TestReconcile_FractionalBatchIsRescaled(t *testing.T) {
	t.Parallel()

	// Arrange: every present value is below 1 in magnitude
	in := []model.MonthlyBar{
		bar("20250131", 10, 10.52, 0.052),
		bar("20250228", 10.52, 10.1, -0.04),
		bar("20250331", 10.1, 10.2),
	}

	// Act
	out := Reconcile(in, "")

	// Assert
	require.InDelta(t, 5.2, out[0].PctChg.Float64, 1e-9)
	require.InDelta(t, -4.0, out[1].PctChg.Float64, 1e-9)
	require.Equal(t, model.PctVendor, out[0].PctSource)
	require.Equal(t, model.PctPrevClose, out[2].PctSource)
	// input untouched
	require.InDelta(t, 0.052, in[0].PctChg.Float64, 1e-12)
}

func TestReconcile_PercentBatchIsNotRescaled(t *testing.T) {
	t.Parallel()

	in := []model.MonthlyBar{
		bar("20250131", 10, 10.5, 5),
		bar("20250228", 10.5, 10.4, -0.95),
		bar("20250331", 10.4, 10.5, 1),
	}
	out := Reconcile(in, "")

	require.InDelta(t, 5, out[0].PctChg.Float64, 1e-9)
	require.InDelta(t, -0.95, out[1].PctChg.Float64, 1e-9)
	require.InDelta(t, 1, out[2].PctChg.Float64, 1e-9)
}

func TestReconcile_CorruptedVendorValueRecomputed(t *testing.T) {
	t.Parallel()

	// manual = -50, |150 - -50| = 200 > 50 and |150| > 100
	out := Reconcile([]model.MonthlyBar{bar("20250131", 10, 5, 150)}, "")

	require.True(t, out[0].PctChg.Valid)
	require.InDelta(t, -50.0, out[0].PctChg.Float64, 1e-9)
	require.Equal(t, model.PctOpenFallback, out[0].PctSource)
}

func TestReconcile_LargeButExplainableSwingKept(t *testing.T) {
	t.Parallel()

	// |v| > 100 but within 50 of the open-anchored 150
	out := Reconcile([]model.MonthlyBar{bar("20250131", 10, 25, 180)}, "")
	require.InDelta(t, 180, out[0].PctChg.Float64, 1e-9)
	require.Equal(t, model.PctVendor, out[0].PctSource)

	// inconsistent but under the floor
	out = Reconcile([]model.MonthlyBar{bar("20250131", 10, 5, 60)}, "")
	require.InDelta(t, 60, out[0].PctChg.Float64, 1e-9)
}

func TestReconcile_CapAppliesWithoutOpenClose(t *testing.T) {
	t.Parallel()

	b := bar("20250131", 0, 0, 900)
	b.Open, b.Close = null.Float{}, null.Float{}

	out := Reconcile([]model.MonthlyBar{b}, "")
	require.False(t, out[0].PctChg.Valid)
}

func TestReconcile_ListingMonthAnchoredToOpen(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name   string
		vendor []float64
		want   float64
		src    model.PctSource
	}{
		{"no vendor value", nil, -25, model.PctListingOpen},
		{"vendor off by more than tolerance", []float64{30}, -25, model.PctListingOpen},
		{"vendor within tolerance", []float64{-20}, -20, model.PctVendor},
		{"vendor corrupted", []float64{300}, -25, model.PctListingOpen},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := Reconcile([]model.MonthlyBar{bar("20251128", 20, 15, tc.vendor...)}, "20251103")
			require.InDelta(t, tc.want, out[0].PctChg.Float64, 1e-9)
			require.Equal(t, tc.src, out[0].PctSource)
		})
	}
}

func TestReconcile_ListingMonthIgnoresPriorClose(t *testing.T) {
	t.Parallel()

	prior := bar("20251031", 1, 100)
	out := DefaultPolicy().Reconcile([]model.MonthlyBar{bar("20251128", 20, 15)},
		Anchors{ListDate: "20251103", Prior: &prior})
	require.InDelta(t, -25, out[0].PctChg.Float64, 1e-9)
}

func TestReconcile_PriorAnchorAndGaps(t *testing.T) {
	t.Parallel()

	// Arrange: Jan anchored by the prior bar, Feb by Jan, Apr has a gap before it
	prior := bar("20241231", 9, 8)
	in := []model.MonthlyBar{
		bar("20250131", 8.2, 10),
		bar("20250228", 10, 11),
		bar("20250430", 12, 9),
	}

	// Act
	out := DefaultPolicy().Reconcile(in, Anchors{Prior: &prior})

	// Assert
	require.Len(t, out, 3, "the prior bar is not part of the output")
	require.InDelta(t, 25, out[0].PctChg.Float64, 1e-9)
	require.Equal(t, model.PctPrevClose, out[0].PctSource)
	require.InDelta(t, 10, out[1].PctChg.Float64, 1e-9)
	require.InDelta(t, -25, out[2].PctChg.Float64, 1e-9)
	require.Equal(t, model.PctOpenFallback, out[2].PctSource)
}

func TestReconcile_AggregatedMonthWithoutPredecessor(t *testing.T) {
	t.Parallel()

	// daily closes [10, 11, 9], open 10: aggregated open=10 close=9
	out := Reconcile([]model.MonthlyBar{bar("20250124", 10, 9)}, "")
	require.InDelta(t, -10.0, out[0].PctChg.Float64, 1e-9)
	require.Equal(t, model.PctOpenFallback, out[0].PctSource)
}

func TestReconcile_UnknownWhenNothingToAnchor(t *testing.T) {
	t.Parallel()

	b := bar("20250131", 0, 10)
	b.Open = null.Float{}
	out := Reconcile([]model.MonthlyBar{b}, "")
	require.False(t, out[0].PctChg.Valid)

	// a zero open cannot anchor either
	out = Reconcile([]model.MonthlyBar{bar("20250131", 0, 10)}, "")
	require.False(t, out[0].PctChg.Valid)
}

func TestReconcile_ComputedOverCapStaysUnknown(t *testing.T) {
	t.Parallel()

	out := Reconcile([]model.MonthlyBar{bar("20250131", 1, 10)}, "")
	require.False(t, out[0].PctChg.Valid)
}

func TestReconcile_RoundsComputedValues(t *testing.T) {
	t.Parallel()

	out := Reconcile([]model.MonthlyBar{bar("20250131", 3, 4)}, "")
	require.Equal(t, 33.3333, out[0].PctChg.Float64)
}

func TestReconcile_SortsAndDedupes(t *testing.T) {
	t.Parallel()

	in := []model.MonthlyBar{
		bar("20250228", 10, 11, 10),
		bar("20250130", 9, 9.5, 2),
		bar("20250131", 9, 10, 3),
	}
	out := Reconcile(in, "")
	require.Len(t, out, 2)
	require.Equal(t, "20250131", out[0].TradeDate)
	require.InDelta(t, 3, out[0].PctChg.Float64, 1e-9)
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	prior := bar("20241231", 9, 8)
	in := []model.MonthlyBar{
		bar("20250131", 8.2, 10, 0.2),
		bar("20250228", 10, 11, 0.1),
		bar("20250331", 11, 5),
		bar("20250530", 5, 6, 0.9),
	}
	for _, a := range []Anchors{{}, {ListDate: "20250105"}, {Prior: &prior}} {
		once := DefaultPolicy().Reconcile(in, a)
		twice := DefaultPolicy().Reconcile(once, a)
		require.Equal(t, once, twice)
		require.Zero(t, Changed(once, twice))
	}
}

func TestReconcile_PropertyNoValueBeyondCapAndIdempotent(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		n := 1 + rng.IntN(12)
		in := make([]model.MonthlyBar, 0, n)
		for m := 1; m <= n; m++ {
			d := model.MonthKey{Year: 2024, Month: m}.Last()
			b := model.NewMonthlyBar("600000.SH", d)
			if rng.IntN(10) > 0 {
				b.Open = null.FloatFrom(rng.Float64()*20 + 0.01)
			}
			if rng.IntN(10) > 0 {
				b.Close = null.FloatFrom(rng.Float64() * 20)
			}
			switch rng.IntN(4) {
			case 0:
			case 1:
				b.PctChg = null.FloatFrom(rng.NormFloat64())
			default:
				b.PctChg = null.FloatFrom((rng.Float64() - 0.5) * 2000)
			}
			in = append(in, b)
		}
		listDate := ""
		if rng.IntN(2) == 0 {
			listDate = model.FormatDate(model.MonthKey{Year: 2024, Month: 1 + rng.IntN(n)}.First())
		}

		once := Reconcile(in, listDate)
		for _, b := range once {
			if b.PctChg.Valid {
				require.LessOrEqual(t, math.Abs(b.PctChg.Float64), 500.0)
			}
		}
		require.Equal(t, once, Reconcile(once, listDate))
	}
}

func TestIsFirstTradableMonth(t *testing.T) {
	t.Parallel()

	require.True(t, IsFirstTradableMonth("20251103", 2025, 11))
	require.False(t, IsFirstTradableMonth("20251103", 2025, 12))
	require.False(t, IsFirstTradableMonth("", 2025, 11))
	require.False(t, IsFirstTradableMonth("2025-11-03", 2025, 11))
}

func TestPolicy_ConfigurableThresholds(t *testing.T) {
	t.Parallel()

	// a tighter tolerance replaces a vendor value the default would keep
	p := DefaultPolicy()
	p.FirstMonthTolerance = 2
	out := p.Reconcile([]model.MonthlyBar{bar("20251128", 20, 15, -20)}, Anchors{ListDate: "20251103"})
	require.InDelta(t, -25, out[0].PctChg.Float64, 1e-9)

	// zero fields fall back to defaults
	out = Policy{}.Reconcile([]model.MonthlyBar{bar("20250131", 10, 5, 150)}, Anchors{})
	require.InDelta(t, -50, out[0].PctChg.Float64, 1e-9)
}
