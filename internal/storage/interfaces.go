package storage

import (
	"context"
	"time"

	"market-pipeline/internal/domain"
)

// CursorKey is the state-table key holding the date of the most
// recently loaded data.
const CursorKey = "last_loaded_date"

// BarStore provides access to the canonical raw.price_ohlcv table.
type BarStore interface {
	// LoadBatch upserts every bar keyed by (ticker, date), overwriting
	// all measure columns on conflict and stamping a load timestamp,
	// and advances the state cursor to max(date) over the batch.
	// Both writes commit together or neither does. Returns the new
	// cursor value.
	LoadBatch(ctx context.Context, bars []*domain.PriceBar) (time.Time, error)

	// InsertMissing inserts bars with insert-if-absent semantics:
	// existing (ticker, date) rows are never overwritten. All inserts
	// share a single commit. Returns the number of rows inserted.
	InsertMissing(ctx context.Context, bars []*domain.PriceBar) (int, error)

	// Tickers returns the distinct tickers present, sorted ASC.
	Tickers(ctx context.Context) ([]string, error)

	// Dates returns the trading dates present for a ticker, sorted ASC.
	Dates(ctx context.Context, ticker string) ([]time.Time, error)

	// GetByKey retrieves one bar. Returns ErrNotFound if not present.
	GetByKey(ctx context.Context, ticker string, date time.Time) (*domain.PriceBar, error)

	// AllOrdered returns the full history ordered by date ASC, ticker ASC.
	AllOrdered(ctx context.Context) ([]*domain.PriceBar, error)
}

// FactorStore provides access to the analytics.factors snapshot table.
type FactorStore interface {
	// ReplaceAll atomically replaces the whole indicator table with the
	// given rows. Readers never observe a partially rebuilt table.
	ReplaceAll(ctx context.Context, rows []*domain.FactorRow) error

	// GetByTicker returns the factor rows for a ticker, date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.FactorRow, error)
}

// StateStore provides access to the single-row-per-key system.state table.
type StateStore interface {
	// LastLoadedDate returns the persisted cursor. ok is false when the
	// cursor has never been written.
	LastLoadedDate(ctx context.Context) (d time.Time, ok bool, err error)

	// SetLastLoadedDate overwrites the cursor. Used by tests and manual
	// intervention; the Loader advances it transactionally via LoadBatch.
	SetLastLoadedDate(ctx context.Context, d time.Time) error
}

// ReadStore serves the read-only HTTP surface.
type ReadStore interface {
	// Tickers returns the distinct tickers present, sorted ASC.
	Tickers(ctx context.Context) ([]string, error)

	// PricesWithFactors returns the inner join of price and factor rows
	// for a ticker, ordered by date ASC.
	PricesWithFactors(ctx context.Context, ticker string) ([]*domain.PricePoint, error)
}
