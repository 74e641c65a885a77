// Package store defines the persistence boundaries for bars and listing
// metadata. Implementations live in the subpackages.
package store

import (
	"context"
	"errors"
	"fmt"

	"monthbars/internal/model"
)

// BarStore persists reconciled bars per source. Saving a bar for a month
// that already exists for (source, symbol) replaces it.
type BarStore interface {
	SaveBars(ctx context.Context, source string, bars []model.MonthlyBar) error
	// GetBars returns the stored bars ordered by trade date; none is not an error.
	GetBars(ctx context.Context, symbol, source string) ([]model.MonthlyBar, error)
}

// ListingStore persists listing dates. GetListingDate returns "" for unknown
// symbols. SetListingDate is an idempotent upsert.
type ListingStore interface {
	GetListingDate(ctx context.Context, symbol string) (string, error)
	SetListingDate(ctx context.Context, symbol, date string) error
}

// Store is a backend that holds both.
type Store interface {
	BarStore
	ListingStore
	Close() error
}

// Driver names accepted by configuration.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Mirrored writes bars to Store and then to every mirror. Reads and listing
// dates are served by Store alone.
type Mirrored struct {
	Store
	Mirrors []BarStore
}

func (m Mirrored) SaveBars(ctx context.Context, source string, bars []model.MonthlyBar) error {
	if err := m.Store.SaveBars(ctx, source, bars); err != nil {
		return err
	}
	var errs []error
	for _, mirror := range m.Mirrors {
		if err := mirror.SaveBars(ctx, source, bars); err != nil {
			errs = append(errs, fmt.Errorf("mirror: %w", err))
		}
	}
	return errors.Join(errs...)
}
