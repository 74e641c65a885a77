// Package postgres stores bars and listing dates in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monthbars/internal/config"
	"monthbars/internal/model"
	"monthbars/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS stocks (
  symbol     TEXT PRIMARY KEY,
  list_date  TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS monthly_bars (
  source     TEXT NOT NULL,
  symbol     TEXT NOT NULL,
  year       INTEGER NOT NULL,
  month      INTEGER NOT NULL,
  trade_date TEXT NOT NULL,
  open       DOUBLE PRECISION,
  close      DOUBLE PRECISION,
  high       DOUBLE PRECISION,
  low        DOUBLE PRECISION,
  volume     DOUBLE PRECISION,
  amount     DOUBLE PRECISION,
  pct_chg    DOUBLE PRECISION,
  pct_source TEXT NOT NULL DEFAULT '',
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (source, symbol, year, month)
);
CREATE INDEX IF NOT EXISTS idx_monthly_bars_symbol ON monthly_bars(symbol, trade_date);
`

const upsertBar = `
INSERT INTO monthly_bars (source, symbol, year, month, trade_date, open, close, high, low, volume, amount, pct_chg, pct_source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (source, symbol, year, month) DO UPDATE SET
  trade_date = EXCLUDED.trade_date, open = EXCLUDED.open, close = EXCLUDED.close,
  high = EXCLUDED.high, low = EXCLUDED.low, volume = EXCLUDED.volume, amount = EXCLUDED.amount,
  pct_chg = EXCLUDED.pct_chg, pct_source = EXCLUDED.pct_source, updated_at = now()
`

type Store struct {
	pool *pgxpool.Pool
}

// Open connects and applies the schema.
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// SaveBars upserts all bars in one batch.
func (s *Store) SaveBars(ctx context.Context, source string, bars []model.MonthlyBar) error {
	if len(bars) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, b := range bars {
		batch.Queue(upsertBar, source, b.Symbol, b.Year, b.Month, b.TradeDate,
			b.Open, b.Close, b.High, b.Low, b.Volume, b.Amount, b.PctChg, string(b.PctSource))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var errs []error
	for _, b := range bars {
		if _, err := results.Exec(); err != nil {
			errs = append(errs, fmt.Errorf("upsert bar %s %s: %w", b.Symbol, b.TradeDate, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Store) GetBars(ctx context.Context, symbol, source string) ([]model.MonthlyBar, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT symbol, trade_date, year, month, open, close, high, low, volume, amount, pct_chg, pct_source
		FROM monthly_bars WHERE symbol = $1 AND source = $2 ORDER BY trade_date`, symbol, source)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
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
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.PctSource = model.PctSource(src)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetListingDate(ctx context.Context, symbol string) (string, error) {
	var d string
	err := s.pool.QueryRow(ctx, `SELECT list_date FROM stocks WHERE symbol = $1`, symbol).Scan(&d)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get listing date of %s: %w", symbol, err)
	}
	return d, nil
}

func (s *Store) SetListingDate(ctx context.Context, symbol, date string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stocks (symbol, list_date) VALUES ($1, $2)
		ON CONFLICT (symbol) DO UPDATE SET list_date = EXCLUDED.list_date, updated_at = now()`,
		symbol, date)
	if err != nil {
		return fmt.Errorf("set listing date of %s: %w", symbol, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

var _ store.Store = (*Store)(nil)
