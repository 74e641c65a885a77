package main

import (
	"context"
	"fmt"
	"log/slog"

	"monthbars/internal/fetch"
	"monthbars/internal/reconcile"
	"monthbars/internal/store"
)

type job struct {
	store    store.BarStore
	listings fetch.ListingResolver
	policy   reconcile.Policy
	// listingTag is passed to the resolver; the authoritative provider tag lets it ask upstream.
	listingTag string
	dryRun     bool
	log        *slog.Logger
}

type outcome struct {
	Symbol   string `json:"symbol"`
	Source   string `json:"source"`
	ListDate string `json:"list_date,omitempty"`
	Bars     int    `json:"bars"`
	Changed  int    `json:"changed"`
	Saved    bool   `json:"saved"`
}

// revalidate re-runs reconciliation over the stored bars of symbol and
// writes them back only when a pct_chg value or its source changed.
func (j job) revalidate(ctx context.Context, source, symbol string) (outcome, error) {
	out := outcome{Symbol: symbol, Source: source}
	before, err := j.store.GetBars(ctx, symbol, source)
	if err != nil {
		return out, fmt.Errorf("load %s/%s: %w", source, symbol, err)
	}
	out.Bars = len(before)
	if len(before) == 0 {
		return out, nil
	}

	if j.listings != nil {
		out.ListDate, _ = j.listings.ListingDate(ctx, j.listingTag, symbol)
	}
	after := j.policy.Reconcile(before, reconcile.Anchors{ListDate: out.ListDate})
	out.Changed = reconcile.Changed(before, after)
	if out.Changed == 0 || j.dryRun {
		return out, nil
	}
	if err := j.store.SaveBars(ctx, source, after); err != nil {
		return out, fmt.Errorf("save %s/%s: %w", source, symbol, err)
	}
	out.Saved = true
	j.log.Info("revalidated", "symbol", symbol, "source", source, "changed", out.Changed)
	return out, nil
}
