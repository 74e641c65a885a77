package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"monthbars/internal/app"
	"monthbars/internal/compare"
	"monthbars/internal/config"
	"monthbars/internal/fetch"
	"monthbars/internal/logx"
	"monthbars/internal/model"
)

func main() { os.Exit(run()) }

func run() int {
	now := time.Now()
	var (
		configPath  string
		providerTag string
		symbolsCSV  string
		start       string
		end         string
		compareCSV  string
		save        bool
		timeout     int
	)
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.yaml or config.json (optional)")
	flag.StringVar(&providerTag, "provider", getenv("PROVIDER", "tushare"), "provider tag")
	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", "000001.SZ"), "comma-separated symbols")
	flag.StringVar(&start, "start", model.FormatDate(time.Date(now.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)), "first day, YYYYMMDD")
	flag.StringVar(&end, "end", model.FormatDate(now), "last day, YYYYMMDD")
	flag.StringVar(&compareCSV, "compare", "", "comma-separated providers to compare instead of a single fetch")
	flag.BoolVar(&save, "save", false, "save fetched bars into the configured store")
	flag.IntVar(&timeout, "timeout", 300, "overall timeout seconds")
	flag.Parse()

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := logx.New(cfg.Log.Level, cfg.Log.Format)

	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		log.Error("no symbols provided")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup", "err", err)
		return 1
	}
	defer a.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	failed := 0
	for _, sym := range symbols {
		if providers := splitCSV(compareCSV); len(providers) > 0 {
			rep, err := compare.Run(ctx, a.Orchestrator, providers, sym, start, end)
			if err != nil {
				log.Error("compare", "symbol", sym, "err", err)
				failed++
				continue
			}
			_ = enc.Encode(rep)
			continue
		}

		res, err := a.Orchestrator.Fetch(ctx, fetch.Request{Provider: providerTag, Symbol: sym, Start: start, End: end})
		if err != nil {
			log.Error("fetch", "symbol", sym, "err", err)
			failed++
			continue
		}
		log.Info("fetched", "symbol", res.Symbol, "provider", res.Provider, "strategy", res.Strategy, "bars", len(res.Bars))
		_ = enc.Encode(res)

		if save && len(res.Bars) > 0 {
			if err := a.Store.SaveBars(ctx, res.Provider, res.Bars); err != nil {
				log.Error("save", "symbol", res.Symbol, "err", err)
				failed++
			}
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
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

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
