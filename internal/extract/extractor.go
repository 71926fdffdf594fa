// Package extract computes the required date range from the persisted
// cursor and pulls the raw wide payload from the market-data provider.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/domain"
	"market-pipeline/internal/marketdata"
	"market-pipeline/internal/storage"
)

// ErrNoData is returned when the date window was valid but the
// provider produced nothing — likely an outage, distinct from "no
// work". The scheduler owns retry.
var ErrNoData = errors.New("no data returned")

// DefaultLookbackDays seeds the first run when no cursor exists yet.
const DefaultLookbackDays = 365

// Extractor determines how much new data is needed and produces the
// raw artifact for the Normalizer.
type Extractor struct {
	state     storage.StateStore
	client    marketdata.Client
	artifacts *artifact.Store
	symbols   []string
	lookback  int
	now       func() time.Time
	logger    *log.Logger
}

// Options for creating an Extractor.
type Options struct {
	State     storage.StateStore
	Client    marketdata.Client
	Artifacts *artifact.Store
	Symbols   []string
	Lookback  int              // days of history on first run; DefaultLookbackDays if zero
	Now       func() time.Time // injectable clock; time.Now if nil
	Logger    *log.Logger
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	e := &Extractor{
		state:     opts.State,
		client:    opts.Client,
		artifacts: opts.Artifacts,
		symbols:   opts.Symbols,
		lookback:  opts.Lookback,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if e.lookback <= 0 {
		e.lookback = DefaultLookbackDays
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Result is the Extractor's stage outcome. Skipped means the store is
// already up to date — downstream stages no-op rather than fail.
type Result struct {
	Skipped bool
	RawPath string
	Start   time.Time
	End     time.Time
}

// Run computes [start, end) from the cursor and fetches the window.
// start = cursor+1d when a cursor exists, else today-lookback; end = today.
func (e *Extractor) Run(ctx context.Context, runID string) (*Result, error) {
	today := domain.Day(e.now().UTC())

	cursor, hasCursor, err := e.state.LastLoadedDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}

	var start time.Time
	if hasCursor {
		start = domain.Day(cursor).AddDate(0, 0, 1)
	} else {
		start = today.AddDate(0, 0, -e.lookback)
	}
	end := today

	if !start.Before(end) {
		e.logf("store is current through %s, nothing to extract", cursor.Format(domain.DateLayout))
		return &Result{Skipped: true, Start: start, End: end}, nil
	}

	table, err := e.client.FetchDaily(ctx, e.symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch daily bars [%s, %s): %w",
			start.Format(domain.DateLayout), end.Format(domain.DateLayout), err)
	}
	if table.Empty() {
		return nil, fmt.Errorf("%w for [%s, %s)", ErrNoData,
			start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}

	path, err := e.artifacts.WriteRaw(runID, table)
	if err != nil {
		return nil, fmt.Errorf("write raw artifact: %w", err)
	}

	e.logf("extracted %d dates x %d tickers into %s", len(table.Dates), len(table.Tickers()), path)
	return &Result{RawPath: path, Start: start, End: end}, nil
}

func (e *Extractor) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
