package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// barKey identifies one bar.
type barKey struct {
	ticker string
	date   time.Time
}

// BarStore is an in-memory implementation of storage.BarStore and
// storage.StateStore. Holding bars and cursor behind one mutex gives
// LoadBatch the same all-or-nothing behavior as the SQL transaction.
type BarStore struct {
	mu        sync.RWMutex
	bars      map[barKey]*domain.PriceBar
	cursor    time.Time
	hasCursor bool
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{bars: make(map[barKey]*domain.PriceBar)}
}

// Compile-time interface checks.
var (
	_ storage.BarStore   = (*BarStore)(nil)
	_ storage.StateStore = (*BarStore)(nil)
)

// LoadBatch upserts all bars and advances the cursor to max(date).
func (s *BarStore) LoadBatch(_ context.Context, bars []*domain.PriceBar) (time.Time, error) {
	if len(bars) == 0 {
		return time.Time{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var maxDate time.Time
	for _, b := range bars {
		barCopy := *b
		barCopy.Date = domain.Day(b.Date)
		barCopy.LoadTs = now
		s.bars[barKey{b.Ticker, barCopy.Date}] = &barCopy
		if barCopy.Date.After(maxDate) {
			maxDate = barCopy.Date
		}
	}
	s.cursor = maxDate
	s.hasCursor = true
	return maxDate, nil
}

// InsertMissing inserts bars only where the key is absent.
func (s *BarStore) InsertMissing(_ context.Context, bars []*domain.PriceBar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var inserted int
	for _, b := range bars {
		key := barKey{b.Ticker, domain.Day(b.Date)}
		if _, exists := s.bars[key]; exists {
			continue
		}
		barCopy := *b
		barCopy.Date = key.date
		barCopy.LoadTs = now
		s.bars[key] = &barCopy
		inserted++
	}
	return inserted, nil
}

// Tickers returns the distinct tickers present, sorted ASC.
func (s *BarStore) Tickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var tickers []string
	for key := range s.bars {
		if !seen[key.ticker] {
			seen[key.ticker] = true
			tickers = append(tickers, key.ticker)
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

// Dates returns the trading dates present for a ticker, sorted ASC.
func (s *BarStore) Dates(_ context.Context, ticker string) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dates []time.Time
	for key := range s.bars {
		if key.ticker == ticker {
			dates = append(dates, key.date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// GetByKey retrieves one bar. Returns ErrNotFound if not present.
func (s *BarStore) GetByKey(_ context.Context, ticker string, date time.Time) (*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.bars[barKey{ticker, domain.Day(date)}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	barCopy := *b
	return &barCopy, nil
}

// AllOrdered returns the full history ordered by date ASC, ticker ASC.
func (s *BarStore) AllOrdered(_ context.Context) ([]*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bars := make([]*domain.PriceBar, 0, len(s.bars))
	for _, b := range s.bars {
		barCopy := *b
		bars = append(bars, &barCopy)
	}
	sort.Slice(bars, func(i, j int) bool {
		if !bars[i].Date.Equal(bars[j].Date) {
			return bars[i].Date.Before(bars[j].Date)
		}
		return bars[i].Ticker < bars[j].Ticker
	})
	return bars, nil
}

// LastLoadedDate returns the cursor, ok=false if never written.
func (s *BarStore) LastLoadedDate(_ context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, s.hasCursor, nil
}

// SetLastLoadedDate overwrites the cursor.
func (s *BarStore) SetLastLoadedDate(_ context.Context, d time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = domain.Day(d)
	s.hasCursor = true
	return nil
}
