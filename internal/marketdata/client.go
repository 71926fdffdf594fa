// Package marketdata defines the market-data capability consumed by
// the pipeline: daily OHLCV bars for a symbol universe over a date
// range, plus single-day point fetches for gap repair.
package marketdata

import (
	"context"
	"time"

	"market-pipeline/internal/domain"
)

// Client is the market-data capability.
type Client interface {
	// FetchDaily returns daily bars for all symbols over [start, end)
	// as a wide table (columns nested by ticker then metric). An empty
	// table means the provider had no data for the window; transport
	// failures surface as errors.
	FetchDaily(ctx context.Context, symbols []string, start, end time.Time) (*domain.WideTable, error)

	// FetchSingle returns one symbol's bar for one date, or nil when
	// the provider has no data for that day (holiday, vendor attrition).
	FetchSingle(ctx context.Context, symbol string, date time.Time) (*domain.PriceBar, error)
}
