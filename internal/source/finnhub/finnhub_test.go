package finnhub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"monthbars/internal/source"
)

var (
	jan = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
)

func TestFetchMonthly_ParallelArraysToTable(t *testing.T) {
	t.Parallel()

	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stock/candle", r.URL.Path)
		require.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		require.Equal(t, "M", r.URL.Query().Get("resolution"))
		require.Equal(t, "k", r.URL.Query().Get("token"))
		require.Equal(t, "1735689600", r.URL.Query().Get("from"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"s": "ok",
			"t": []int64{1735689600, 1738368000},
			"o": []float64{250.1, 236},
			"h": []float64{260, 245},
			"l": []float64{219, 225},
			"c": []float64{236, 241.84},
			"v": []float64{1e6, 2e6},
		})
	}))
	defer srv.Close()
	a := New(Config{URL: srv.URL, APIKey: "k"}, srv.Client())

	// Act
	tbl, err := a.FetchMonthly(t.Context(), "aapl", jan, feb)
	require.NoError(t, err)
	rows, err := source.MapTable(tbl, a.Headers())

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), rows[1].Date)
	require.InDelta(t, 241.84, rows[1].Close.Float64, 1e-9)
	require.False(t, rows[0].PctChg.Valid)
}

func TestFetch_NoDataIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "D", r.URL.Query().Get("resolution"))
		_, _ = w.Write([]byte(`{"s":"no_data"}`))
	}))
	defer srv.Close()
	a := New(Config{URL: srv.URL}, srv.Client())

	tbl, err := a.FetchDaily(t.Context(), "MSFT", jan, feb)
	require.NoError(t, err)
	require.Zero(t, tbl.Len())
}

func TestFetch_UncoveredExchangeUnsupported(t *testing.T) {
	t.Parallel()

	a := New(Config{URL: "http://unused.invalid"}, nil)
	_, err := a.FetchMonthly(t.Context(), "000001.SZ", jan, feb)
	require.ErrorIs(t, err, source.ErrUnsupported)
	_, err = a.FetchDaily(t.Context(), "600000", jan, feb)
	require.ErrorIs(t, err, source.ErrUnsupported)
}

func TestFetch_ForbiddenIsUnsupported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "600000.SS", r.URL.Query().Get("symbol"))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	a := New(Config{URL: srv.URL, Exchanges: []string{"sh", "US"}}, srv.Client())

	_, err := a.FetchMonthly(t.Context(), "600000.SH", jan, feb)
	require.ErrorIs(t, err, source.ErrUnsupported)
}

func TestFetch_RaggedArraysSchemaMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"s":"ok","t":[1,2],"o":[1],"c":[1,2]}`))
	}))
	defer srv.Close()
	a := New(Config{URL: srv.URL}, srv.Client())

	_, err := a.FetchMonthly(t.Context(), "AAPL", jan, feb)
	require.ErrorIs(t, err, source.ErrSchemaMismatch)
}
