package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"monthbars/internal/compare"
	"monthbars/internal/fetch"
	"monthbars/internal/model"
	"monthbars/internal/reconcile"
)

// barFetcher is the slice of *fetch.Orchestrator the handlers use.
type barFetcher interface {
	compare.Fetcher
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
	Providers() []string
}

const maxCompareProviders = 8

type api struct {
	fetcher barFetcher
	policy  reconcile.Policy
	timeout time.Duration
	log     *slog.Logger
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /api/providers", a.handleProviders)
	mux.HandleFunc("GET /api/monthly-bars", a.handleMonthlyBars)
	mux.HandleFunc("POST /api/reconcile", a.handleReconcile)
	mux.HandleFunc("GET /api/compare", a.handleCompare)
	return mux
}

func (a *api) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Providers []string `json:"providers"`
	}{a.fetcher.Providers()})
}

func (a *api) handleMonthlyBars(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := fetch.Request{
		Provider: strings.TrimSpace(q.Get("provider")),
		Symbol:   strings.TrimSpace(q.Get("symbol")),
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
	}
	if req.Provider == "" || req.Symbol == "" || req.Start == "" || req.End == "" {
		http.Error(w, "provider, symbol, start and end are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	res, err := a.fetcher.Fetch(ctx, req)
	if err != nil {
		a.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type reconcileBody struct {
	Bars     []model.MonthlyBar `json:"bars"`
	ListDate string             `json:"list_date"`
	Prior    *model.MonthlyBar  `json:"prior"`
}

type reconcileResponse struct {
	Bars    []model.MonthlyBar `json:"bars"`
	Changed int                `json:"changed"`
}

func (a *api) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var b reconcileBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if b.ListDate != "" {
		if _, err := model.ParseDate(b.ListDate); err != nil {
			http.Error(w, "list_date must be YYYYMMDD", http.StatusBadRequest)
			return
		}
	}
	for _, bar := range b.Bars {
		if err := bar.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	out := a.policy.Reconcile(b.Bars, reconcile.Anchors{ListDate: b.ListDate, Prior: b.Prior})
	writeJSON(w, http.StatusOK, reconcileResponse{Bars: out, Changed: reconcile.Changed(b.Bars, out)})
}

func (a *api) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	providers := splitCSV(q.Get("providers"))
	if len(providers) == 0 {
		providers = a.fetcher.Providers()
	}
	if len(providers) > maxCompareProviders {
		http.Error(w, "too many providers", http.StatusBadRequest)
		return
	}
	symbol, start, end := strings.TrimSpace(q.Get("symbol")), strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if symbol == "" || start == "" || end == "" {
		http.Error(w, "symbol, start and end are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	rep, err := compare.Run(ctx, a.fetcher, providers, symbol, start, end)
	if err != nil {
		a.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (a *api) writeFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fetch.ErrUnknownProvider),
		errors.Is(err, fetch.ErrInvalidDate),
		errors.Is(err, fetch.ErrInvalidSymbol):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		a.log.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
