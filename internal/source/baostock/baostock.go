// Package baostock adapts the session-based baostock SDK. Every fetch logs in,
// runs one query and logs out; the session is released on all exit paths.
package baostock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"monthbars/internal/source"
)

const Tag = "baostock"

var fields = []string{"date", "code", "open", "high", "low", "close", "volume", "amount", "pctChg"}

// Session is one logged-in baostock connection.
type Session interface {
	QueryHistoryKData(ctx context.Context, q Query) (source.Table, error)
	Logout(ctx context.Context) error
}

// Dialer opens sessions.
type Dialer interface {
	Login(ctx context.Context) (Session, error)
}

// Query mirrors query_history_k_data_plus arguments.
type Query struct {
	Code       string   `json:"code"`
	Fields     []string `json:"fields"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Frequency  string   `json:"frequency"`
	AdjustFlag string   `json:"adjustflag"`
}

type Config struct {
	Tag string
	// AdjustFlag: "1" backward, "2" forward, "3" none. Default "2".
	AdjustFlag string
}

type Adapter struct {
	cfg    Config
	dialer Dialer
	log    *slog.Logger
}

func New(cfg Config, dialer Dialer, log *slog.Logger) *Adapter {
	if cfg.Tag == "" {
		cfg.Tag = Tag
	}
	if cfg.AdjustFlag == "" {
		cfg.AdjustFlag = "2"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{cfg: cfg, dialer: dialer, log: log}
}

func (a *Adapter) Tag() string { return a.cfg.Tag }

// ProviderCode returns the baostock form "sz.000001".
func (a *Adapter) ProviderCode(symbol string) (string, error) {
	code, ex, err := source.SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	switch ex {
	case source.ExchangeSZ, source.ExchangeSH:
		return strings.ToLower(ex) + "." + code, nil
	}
	return "", fmt.Errorf("baostock: %w for %q", source.ErrUnsupported, symbol)
}

func (a *Adapter) Headers() source.Headers { return source.DefaultHeaders }

func (a *Adapter) FetchMonthly(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return a.query(ctx, symbol, "m", start, end)
}

func (a *Adapter) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (source.Table, error) {
	return a.query(ctx, symbol, "d", start, end)
}

func (a *Adapter) query(ctx context.Context, symbol, freq string, start, end time.Time) (_ source.Table, err error) {
	code, err := a.ProviderCode(symbol)
	if err != nil {
		return source.Table{}, err
	}
	sess, err := a.dialer.Login(ctx)
	if err != nil {
		return source.Table{}, fmt.Errorf("baostock login: %w", err)
	}
	defer func() {
		// the request context may already be gone; logout must still happen
		if lerr := sess.Logout(context.WithoutCancel(ctx)); lerr != nil {
			a.log.Warn("baostock logout failed", "symbol", symbol, "err", lerr)
		}
	}()

	return sess.QueryHistoryKData(ctx, Query{
		Code:       code,
		Fields:     fields,
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Frequency:  freq,
		AdjustFlag: a.cfg.AdjustFlag,
	})
}

var _ source.Adapter = (*Adapter)(nil)
