// Package sqlite stores bars and listing dates in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"monthbars/internal/model"
	"monthbars/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS stocks (
  symbol     TEXT PRIMARY KEY,
  list_date  TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS monthly_bars (
  source     TEXT NOT NULL,
  symbol     TEXT NOT NULL,
  year       INTEGER NOT NULL,
  month      INTEGER NOT NULL,
  trade_date TEXT NOT NULL,
  open       REAL,
  close      REAL,
  high       REAL,
  low        REAL,
  volume     REAL,
  amount     REAL,
  pct_chg    REAL,
  pct_source TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL,
  PRIMARY KEY (source, symbol, year, month)
);
CREATE INDEX IF NOT EXISTS idx_monthly_bars_symbol ON monthly_bars(symbol, trade_date);
`

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveBars(ctx context.Context, source string, bars []model.MonthlyBar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monthly_bars (source, symbol, year, month, trade_date, open, close, high, low, volume, amount, pct_chg, pct_source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, symbol, year, month) DO UPDATE SET
		  trade_date=excluded.trade_date, open=excluded.open, close=excluded.close,
		  high=excluded.high, low=excluded.low, volume=excluded.volume, amount=excluded.amount,
		  pct_chg=excluded.pct_chg, pct_source=excluded.pct_source, updated_at=excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare bar upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, source, b.Symbol, b.Year, b.Month, b.TradeDate,
			b.Open, b.Close, b.High, b.Low, b.Volume, b.Amount, b.PctChg, string(b.PctSource), now); err != nil {
			return fmt.Errorf("failed to upsert bar %s %s: %w", b.Symbol, b.TradeDate, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetBars(ctx context.Context, symbol, source string) ([]model.MonthlyBar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, trade_date, year, month, open, close, high, low, volume, amount, pct_chg, pct_source
		FROM monthly_bars WHERE symbol = ? AND source = ? ORDER BY trade_date`, symbol, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	out := []model.MonthlyBar{}
	for rows.Next() {
		var (
			b   model.MonthlyBar
			src string
		)
		if err := rows.Scan(&b.Symbol, &b.TradeDate, &b.Year, &b.Month,
			&b.Open, &b.Close, &b.High, &b.Low, &b.Volume, &b.Amount, &b.PctChg, &src); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.PctSource = model.PctSource(src)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetListingDate(ctx context.Context, symbol string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT list_date FROM stocks WHERE symbol = ?`, symbol).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get listing date of %s: %w", symbol, err)
	}
	return d, nil
}

func (s *Store) SetListingDate(ctx context.Context, symbol, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stocks (symbol, list_date, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET list_date=excluded.list_date, updated_at=excluded.updated_at`,
		symbol, date, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to set listing date of %s: %w", symbol, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ store.Store = (*Store)(nil)
