// Package reconcile detects and repairs per-ticker gaps in stored
// price history using a reference ticker's trading calendar.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"market-pipeline/internal/domain"
	"market-pipeline/internal/marketdata"
	"market-pipeline/internal/storage"
)

// DefaultReference is the ticker whose stored dates define the expected
// trading calendar.
const DefaultReference = "SPY"

// Reconciler compares every ticker's stored dates against a reference
// ticker and backfills the missing (ticker, date) bars one by one.
// Repairs never overwrite rows that already exist.
type Reconciler struct {
	bars      storage.BarStore
	client    marketdata.Client
	reference string
	logger    *log.Logger
}

// New creates a Reconciler. reference empty means DefaultReference.
func New(bars storage.BarStore, client marketdata.Client, reference string, logger *log.Logger) *Reconciler {
	if reference == "" {
		reference = DefaultReference
	}
	return &Reconciler{bars: bars, client: client, reference: reference, logger: logger}
}

// Result is the Reconciler's stage outcome.
type Result struct {
	Skipped       bool
	GapsFound     int
	Repaired      int
	SkippedNoData int // provider had no bar for the gap date
	FetchFailures int // provider errors, logged and skipped
}

// Run scans all non-reference tickers for dates present in the
// reference series but absent in theirs, fetches the missing bars and
// inserts them in a single commit. A provider failure on one gap never
// aborts the rest of the scan.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	refDates, err := r.bars.Dates(ctx, r.reference)
	if err != nil {
		return nil, fmt.Errorf("read reference dates for %s: %w", r.reference, err)
	}
	if len(refDates) == 0 {
		r.logf("reference ticker %s has no data, skipping reconciliation", r.reference)
		return &Result{Skipped: true}, nil
	}

	tickers, err := r.bars.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickers: %w", err)
	}

	res := &Result{}
	var repairs []*domain.PriceBar
	for _, ticker := range tickers {
		if ticker == r.reference {
			continue
		}

		gaps, err := r.missingDates(ctx, ticker, refDates)
		if err != nil {
			return nil, err
		}
		res.GapsFound += len(gaps)

		for _, date := range gaps {
			bar, err := r.client.FetchSingle(ctx, ticker, date)
			if err != nil {
				r.logf("fetch %s %s failed: %v", ticker, date.Format(domain.DateLayout), err)
				res.FetchFailures++
				continue
			}
			if bar == nil {
				r.logf("no data for %s on %s, likely not traded", ticker, date.Format(domain.DateLayout))
				res.SkippedNoData++
				continue
			}
			repairs = append(repairs, bar)
		}
	}

	if len(repairs) > 0 {
		inserted, err := r.bars.InsertMissing(ctx, repairs)
		if err != nil {
			return nil, fmt.Errorf("insert repairs: %w", err)
		}
		res.Repaired = inserted
	}

	r.logf("reconciliation done: %d gaps, %d repaired, %d no-data, %d fetch failures",
		res.GapsFound, res.Repaired, res.SkippedNoData, res.FetchFailures)
	return res, nil
}

// missingDates returns reference dates absent from the ticker's series,
// in calendar order.
func (r *Reconciler) missingDates(ctx context.Context, ticker string, refDates []time.Time) ([]time.Time, error) {
	have, err := r.bars.Dates(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("read dates for %s: %w", ticker, err)
	}

	present := make(map[time.Time]struct{}, len(have))
	for _, d := range have {
		present[domain.Day(d)] = struct{}{}
	}

	var gaps []time.Time
	for _, d := range refDates {
		if _, ok := present[domain.Day(d)]; !ok {
			gaps = append(gaps, domain.Day(d))
		}
	}
	return gaps, nil
}

func (r *Reconciler) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
