package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"

	"monthbars/internal/compare"
	"monthbars/internal/fetch"
	"monthbars/internal/model"
	"monthbars/internal/reconcile"
)

type fakeFetcher struct {
	bars map[string][]model.MonthlyBar
	err  error
}

func (f fakeFetcher) Providers() []string { return []string{"akshare", "tushare"} }
func (f fakeFetcher) Fetch(_ context.Context, req fetch.Request) (fetch.Result, error) {
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	return fetch.Result{Symbol: req.Symbol, Provider: req.Provider, Strategy: fetch.StrategyMonthly, Bars: f.bars[req.Provider]}, nil
}
func (f fakeFetcher) FetchMonthlyBars(_ context.Context, provider, _, _, _ string) ([]model.MonthlyBar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bars[provider], nil
}

func bar(date string, open, close, pct null.Float) model.MonthlyBar {
	d, _ := model.ParseDate(date)
	b := model.NewMonthlyBar("000001.SZ", d)
	b.Open, b.Close, b.PctChg = open, close, pct
	return b
}

func newTestServer(f barFetcher) http.Handler {
	a := &api{fetcher: f, policy: reconcile.DefaultPolicy(), timeout: 5 * time.Second, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	return withJSONHeaders(recoverPanic(a.log, limitBody(1<<10, a.routes())))
}

func TestMonthlyBars_OK(t *testing.T) {
	f := fakeFetcher{bars: map[string][]model.MonthlyBar{
		"tushare": {bar("20250131", null.FloatFrom(10), null.FloatFrom(11), null.FloatFrom(10))},
	}}
	rr := httptest.NewRecorder()
	newTestServer(f).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/monthly-bars?provider=tushare&symbol=000001.SZ&start=20250101&end=20250131", nil))
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var res fetch.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Bars) != 1 || res.Bars[0].Close.Float64 != 11 || res.Strategy != fetch.StrategyMonthly {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestMonthlyBars_EmptyIsStillOK(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer(fakeFetcher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/monthly-bars?provider=akshare&symbol=000001&start=20250101&end=20250131", nil))
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"bars":null`) && !strings.Contains(rr.Body.String(), `"bars":[]`) {
		t.Fatalf("want empty bars, got %s", rr.Body.String())
	}
}

func TestMonthlyBars_BadRequests(t *testing.T) {
	cases := []struct {
		name string
		err  error
		url  string
	}{
		{"missing end", nil, "/api/monthly-bars?provider=tushare&symbol=000001.SZ&start=20250101"},
		{"unknown provider", fmt.Errorf("%w: yahoo", fetch.ErrUnknownProvider), "/api/monthly-bars?provider=yahoo&symbol=A&start=20250101&end=20250201"},
		{"invalid date", fmt.Errorf("%w: 2025-01-01", fetch.ErrInvalidDate), "/api/monthly-bars?provider=tushare&symbol=A&start=2025-01-01&end=20250201"},
		{"invalid symbol", fmt.Errorf("%w: ??", fetch.ErrInvalidSymbol), "/api/monthly-bars?provider=tushare&symbol=??&start=20250101&end=20250201"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			newTestServer(fakeFetcher{err: c.err}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, c.url, nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestMonthlyBars_OtherErrorIs500(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestServer(fakeFetcher{err: fmt.Errorf("boom")}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/monthly-bars?provider=tushare&symbol=A&start=20250101&end=20250201", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestReconcile_ListingMonthAndPrevClose(t *testing.T) {
	body, _ := json.Marshal(reconcileBody{
		ListDate: "20250115",
		Bars: []model.MonthlyBar{
			bar("20250228", null.Float{}, null.FloatFrom(13.2), null.Float{}),
			bar("20250131", null.FloatFrom(10), null.FloatFrom(12), null.Float{}),
		},
	})
	rr := httptest.NewRecorder()
	newTestServer(fakeFetcher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reconcile", bytes.NewReader(body)))
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp reconcileResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Changed != 2 || len(resp.Bars) != 2 {
		t.Fatalf("unexpected: %+v", resp)
	}
	jan, feb := resp.Bars[0], resp.Bars[1]
	if jan.PctSource != model.PctListingOpen || jan.PctChg.Float64 != 20 {
		t.Fatalf("jan: %+v", jan)
	}
	if feb.PctSource != model.PctPrevClose || feb.PctChg.Float64 != 10 {
		t.Fatalf("feb: %+v", feb)
	}
}

func TestReconcile_RejectsBadInput(t *testing.T) {
	mismatched := bar("20250131", null.Float{}, null.FloatFrom(1), null.Float{})
	mismatched.Month = 2
	mismatchedJSON, _ := json.Marshal(reconcileBody{Bars: []model.MonthlyBar{mismatched}})
	cases := map[string]string{
		"unknown field":   `{"bars":[],"extra":1}`,
		"bad list date":   `{"bars":[],"list_date":"2025-01-15"}`,
		"month mismatch":  string(mismatchedJSON),
		"body over limit": `{"bars":[],"list_date":"` + strings.Repeat("1", 2<<10) + `"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			newTestServer(fakeFetcher{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/reconcile", strings.NewReader(body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCompare_DefaultsToAllProviders(t *testing.T) {
	f := fakeFetcher{bars: map[string][]model.MonthlyBar{
		"tushare": {bar("20250131", null.Float{}, null.FloatFrom(10), null.FloatFrom(1))},
		"akshare": {bar("20250127", null.Float{}, null.FloatFrom(10.5), null.FloatFrom(1.5))},
	}}
	rr := httptest.NewRecorder()
	newTestServer(f).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/compare?symbol=000001.SZ&start=20250101&end=20250131", nil))
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var rep compare.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rep.Sources) != 2 || len(rep.Rows) != 1 || rep.CommonMonths != 1 {
		t.Fatalf("unexpected: %+v", rep)
	}
	if len(rep.Rows[0].Quotes) != 2 {
		t.Fatalf("quotes: %+v", rep.Rows[0].Quotes)
	}
}

func TestPreflightAndHealth(t *testing.T) {
	h := newTestServer(fakeFetcher{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/reconcile", nil))
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight: %d %v", rr.Code, rr.Header())
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("healthz: %d", rr.Code)
	}
}
