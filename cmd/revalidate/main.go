package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"monthbars/internal/app"
	"monthbars/internal/config"
	"monthbars/internal/logx"
)

func main() { os.Exit(run()) }

func run() int {
	var (
		configPath  string
		sourcesCSV  string
		symbolsCSV  string
		dryRun      bool
		noAuthority bool
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml or config.json (optional)")
	flag.StringVar(&sourcesCSV, "sources", "tushare", "comma-separated sources whose stored bars are revalidated")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated symbols")
	flag.BoolVar(&dryRun, "dry-run", false, "report changes without saving")
	flag.BoolVar(&noAuthority, "no-authority", false, "use stored listing dates only")
	flag.Parse()

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := logx.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.Store.Driver == "memory" {
		log.Error("revalidate needs a persistent store; set store.driver to sqlite or postgres")
		return 2
	}
	symbols := splitCSV(symbolsCSV)
	if len(symbols) == 0 {
		log.Error("no symbols provided")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup", "err", err)
		return 1
	}
	defer a.Close()

	j := job{
		store:      a.Store,
		listings:   a.Listings,
		policy:     cfg.Reconcile,
		listingTag: cfg.Fetch.AuthorityProvider,
		dryRun:     dryRun,
		log:        log,
	}
	if noAuthority {
		j.listingTag = ""
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0
	for _, src := range splitCSV(sourcesCSV) {
		for _, sym := range symbols {
			if ctx.Err() != nil {
				return 1
			}
			res, err := j.revalidate(ctx, src, sym)
			if err != nil {
				log.Error("revalidate", "err", err)
				failed++
				continue
			}
			_ = enc.Encode(res)
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
