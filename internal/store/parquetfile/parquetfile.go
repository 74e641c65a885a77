// Package parquetfile keeps bars as one parquet file per (source, symbol)
// under a root directory: <dir>/<source>/<symbol>.parquet.
package parquetfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/guregu/null/v6"
	"github.com/parquet-go/parquet-go"

	"monthbars/internal/model"
	"monthbars/internal/store"
)

// Row is the on-disk shape of a bar. Unknown values are null.
type Row struct {
	Symbol    string   `parquet:"symbol"`
	TradeDate string   `parquet:"trade_date"`
	Year      int32    `parquet:"year"`
	Month     int32    `parquet:"month"`
	Open      *float64 `parquet:"open,optional"`
	Close     *float64 `parquet:"close,optional"`
	High      *float64 `parquet:"high,optional"`
	Low       *float64 `parquet:"low,optional"`
	Volume    *float64 `parquet:"volume,optional"`
	Amount    *float64 `parquet:"amount,optional"`
	PctChg    *float64 `parquet:"pct_chg,optional"`
	PctSource string   `parquet:"pct_source"`
}

func toRow(b model.MonthlyBar) Row {
	return Row{
		Symbol:    b.Symbol,
		TradeDate: b.TradeDate,
		Year:      int32(b.Year),
		Month:     int32(b.Month),
		Open:      b.Open.Ptr(),
		Close:     b.Close.Ptr(),
		High:      b.High.Ptr(),
		Low:       b.Low.Ptr(),
		Volume:    b.Volume.Ptr(),
		Amount:    b.Amount.Ptr(),
		PctChg:    b.PctChg.Ptr(),
		PctSource: string(b.PctSource),
	}
}

func (r Row) bar() model.MonthlyBar {
	return model.MonthlyBar{
		Symbol:    r.Symbol,
		TradeDate: r.TradeDate,
		Year:      int(r.Year),
		Month:     int(r.Month),
		Open:      null.FloatFromPtr(r.Open),
		Close:     null.FloatFromPtr(r.Close),
		High:      null.FloatFromPtr(r.High),
		Low:       null.FloatFromPtr(r.Low),
		Volume:    null.FloatFromPtr(r.Volume),
		Amount:    null.FloatFromPtr(r.Amount),
		PctChg:    null.FloatFromPtr(r.PctChg),
		PctSource: model.PctSource(r.PctSource),
	}
}

// WriteFile writes bars to path, replacing it atomically.
func WriteFile(path string, bars []model.MonthlyBar) error {
	rows := make([]Row, len(bars))
	for i, b := range bars {
		rows[i] = toRow(b)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}

// ReadFile reads bars from path. A missing file yields no bars.
func ReadFile(path string) ([]model.MonthlyBar, error) {
	rows, err := parquet.ReadFile[Row](path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.MonthlyBar{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := make([]model.MonthlyBar, len(rows))
	for i, r := range rows {
		out[i] = r.bar()
	}
	return model.SortBars(out), nil
}

// Store is a BarStore over a directory tree. It does not hold listing dates.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Store { return &Store{dir: dir} }

func (s *Store) path(source, symbol string) string {
	return filepath.Join(s.dir, source, symbol+".parquet")
}

// SaveBars merges bars into the existing files, one file per symbol.
func (s *Store) SaveBars(_ context.Context, source string, bars []model.MonthlyBar) error {
	bySymbol := make(map[string][]model.MonthlyBar)
	for _, b := range bars {
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for symbol, add := range bySymbol {
		p := s.path(source, symbol)
		existing, err := ReadFile(p)
		if err != nil {
			return err
		}
		if err := WriteFile(p, merge(existing, add)); err != nil {
			return err
		}
	}
	return nil
}

// merge replaces existing months with the ones in add.
func merge(existing, add []model.MonthlyBar) []model.MonthlyBar {
	byMonth := make(map[model.MonthKey]model.MonthlyBar, len(existing)+len(add))
	for _, b := range existing {
		byMonth[b.Key()] = b
	}
	for _, b := range add {
		byMonth[b.Key()] = b
	}
	out := make([]model.MonthlyBar, 0, len(byMonth))
	for _, b := range byMonth {
		out = append(out, b)
	}
	return model.SortBars(out)
}

func (s *Store) GetBars(_ context.Context, symbol, source string) ([]model.MonthlyBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ReadFile(s.path(source, symbol))
}

var _ store.BarStore = (*Store)(nil)
