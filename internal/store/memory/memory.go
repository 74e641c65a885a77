package memory

import (
	"context"
	"sync"

	"monthbars/internal/model"
	"monthbars/internal/store"
)

type barKey struct {
	source string
	symbol string
}

// Store keeps everything in process memory. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	bars     map[barKey]map[model.MonthKey]model.MonthlyBar
	listings map[string]string
}

func New() *Store {
	return &Store{
		bars:     make(map[barKey]map[model.MonthKey]model.MonthlyBar),
		listings: make(map[string]string),
	}
}

func (s *Store) SaveBars(_ context.Context, source string, bars []model.MonthlyBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		k := barKey{source, b.Symbol}
		m, ok := s.bars[k]
		if !ok {
			m = make(map[model.MonthKey]model.MonthlyBar)
			s.bars[k] = m
		}
		m[b.Key()] = b
	}
	return nil
}

func (s *Store) GetBars(_ context.Context, symbol, source string) ([]model.MonthlyBar, error) {
	s.mu.RLock()
	m := s.bars[barKey{source, symbol}]
	out := make([]model.MonthlyBar, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	s.mu.RUnlock()
	return model.SortBars(out), nil
}

func (s *Store) GetListingDate(_ context.Context, symbol string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listings[symbol], nil
}

func (s *Store) SetListingDate(_ context.Context, symbol, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[symbol] = date
	return nil
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
