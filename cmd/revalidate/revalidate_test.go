package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/require"

	"monthbars/internal/model"
	"monthbars/internal/reconcile"
	"monthbars/internal/store/memory"
)

type listingFunc func(symbol string) (string, bool)

func (f listingFunc) ListingDate(_ context.Context, _, symbol string) (string, bool) { return f(symbol) }

func seed(t *testing.T) *memory.Store {
	t.Helper()
	nov := model.NewMonthlyBar("603248.SH", time.Date(2025, 11, 28, 0, 0, 0, 0, time.UTC))
	nov.Open, nov.Close = null.FloatFrom(10), null.FloatFrom(14.5)
	nov.PctChg, nov.PctSource = null.FloatFrom(60), model.PctVendor
	dec := model.NewMonthlyBar("603248.SH", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	dec.Close = null.FloatFrom(15.95)

	st := memory.New()
	require.NoError(t, st.SaveBars(t.Context(), "tushare", []model.MonthlyBar{nov, dec}))
	return st
}

func newJob(st *memory.Store, listDate string) job {
	return job{
		store: st,
		listings: listingFunc(func(string) (string, bool) {
			return listDate, listDate != ""
		}),
		policy: reconcile.DefaultPolicy(),
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRevalidate_FixesAndSaves(t *testing.T) {
	t.Parallel()

	// Arrange
	st := seed(t)
	j := newJob(st, "20251103")

	// Act
	got, err := j.revalidate(t.Context(), "tushare", "603248.SH")

	// Assert
	require.NoError(t, err)
	require.Equal(t, outcome{Symbol: "603248.SH", Source: "tushare", ListDate: "20251103", Bars: 2, Changed: 2, Saved: true}, got)

	bars, err := st.GetBars(t.Context(), "603248.SH", "tushare")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	require.Equal(t, model.PctListingOpen, bars[0].PctSource)
	require.InDelta(t, 45, bars[0].PctChg.Float64, 1e-9)
	require.Equal(t, model.PctPrevClose, bars[1].PctSource)
	require.InDelta(t, 10, bars[1].PctChg.Float64, 1e-9)
}

func TestRevalidate_SecondPassIsNoop(t *testing.T) {
	t.Parallel()

	st := seed(t)
	j := newJob(st, "20251103")
	_, err := j.revalidate(t.Context(), "tushare", "603248.SH")
	require.NoError(t, err)

	got, err := j.revalidate(t.Context(), "tushare", "603248.SH")
	require.NoError(t, err)
	require.Zero(t, got.Changed)
	require.False(t, got.Saved)
}

func TestRevalidate_DryRunLeavesStore(t *testing.T) {
	t.Parallel()

	st := seed(t)
	j := newJob(st, "20251103")
	j.dryRun = true

	got, err := j.revalidate(t.Context(), "tushare", "603248.SH")
	require.NoError(t, err)
	require.Equal(t, 2, got.Changed)
	require.False(t, got.Saved)

	bars, err := st.GetBars(t.Context(), "603248.SH", "tushare")
	require.NoError(t, err)
	require.Equal(t, model.PctVendor, bars[0].PctSource)
	require.False(t, bars[1].PctChg.Valid)
}

func TestRevalidate_UnknownListingKeepsVendorValue(t *testing.T) {
	t.Parallel()

	st := seed(t)
	got, err := newJob(st, "").revalidate(t.Context(), "tushare", "603248.SH")
	require.NoError(t, err)
	require.Equal(t, 1, got.Changed)

	bars, err := st.GetBars(t.Context(), "603248.SH", "tushare")
	require.NoError(t, err)
	require.Equal(t, model.PctVendor, bars[0].PctSource)
	require.InDelta(t, 60, bars[0].PctChg.Float64, 1e-9)
}

func TestRevalidate_NothingStored(t *testing.T) {
	t.Parallel()

	got, err := newJob(memory.New(), "20251103").revalidate(t.Context(), "akshare", "603248.SH")
	require.NoError(t, err)
	require.Equal(t, outcome{Symbol: "603248.SH", Source: "akshare"}, got)
}
