package memory

import (
	"context"
	"sort"
	"sync"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/storage"
)

// FactorStore is an in-memory implementation of storage.FactorStore.
type FactorStore struct {
	mu   sync.RWMutex
	rows []*domain.FactorRow
}

// NewFactorStore creates a new in-memory factor store.
func NewFactorStore() *FactorStore {
	return &FactorStore{}
}

// Compile-time interface check.
var _ storage.FactorStore = (*FactorStore)(nil)

// ReplaceAll swaps in the new snapshot under the write lock.
func (s *FactorStore) ReplaceAll(_ context.Context, rows []*domain.FactorRow) error {
	snapshot := make([]*domain.FactorRow, len(rows))
	for i, r := range rows {
		rowCopy := *r
		rowCopy.Date = domain.Day(r.Date)
		snapshot[i] = &rowCopy
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = snapshot
	return nil
}

// GetByTicker returns the factor rows for a ticker, date ASC.
func (s *FactorStore) GetByTicker(_ context.Context, ticker string) ([]*domain.FactorRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.FactorRow
	for _, r := range s.rows {
		if r.Ticker == ticker {
			rowCopy := *r
			out = append(out, &rowCopy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
