// Package normalize reshapes the raw wide payload (columns nested by
// ticker then metric) into one validated row per (date, ticker).
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/domain"
)

// Stage-fatal validation errors.
var (
	// ErrMalformedInput means the artifact does not have the expected
	// two-level (ticker, metric) column structure.
	ErrMalformedInput = errors.New("malformed input shape")

	// ErrMissingRequiredColumn means neither close nor adj_close is
	// present anywhere in the payload.
	ErrMissingRequiredColumn = errors.New("missing required column")
)

// Canonical metric names after normalization.
const (
	ColOpen     = "open"
	ColHigh     = "high"
	ColLow      = "low"
	ColClose    = "close"
	ColAdjClose = "adj_close"
	ColVolume   = "volume"
)

// metricAliases maps lowercased provider metric names to canonical ones.
var metricAliases = map[string]string{
	"open":      ColOpen,
	"high":      ColHigh,
	"low":       ColLow,
	"close":     ColClose,
	"adj close": ColAdjClose,
	"adj_close": ColAdjClose,
	"adjclose":  ColAdjClose,
	"volume":    ColVolume,
}

// Normalizer pivots raw artifacts into clean long-form artifacts.
type Normalizer struct {
	artifacts *artifact.Store
	logger    *log.Logger
}

// New creates a Normalizer.
func New(artifacts *artifact.Store, logger *log.Logger) *Normalizer {
	return &Normalizer{artifacts: artifacts, logger: logger}
}

// Result is the Normalizer's stage outcome.
type Result struct {
	Skipped   bool
	CleanPath string
	Rows      int // clean rows emitted
	Dropped   int // rows removed by validation
}

// Run reads the raw artifact, validates and pivots it, and writes the
// clean artifact. rawPath empty means the Extractor signaled no work,
// which flows through as a skip.
func (n *Normalizer) Run(ctx context.Context, runID, rawPath string) (*Result, error) {
	if rawPath == "" {
		n.logf("no new data from extract, skipping")
		return &Result{Skipped: true}, nil
	}

	raw, err := n.artifacts.ReadRaw(rawPath)
	if err != nil {
		return nil, err
	}

	columns, synthesizeAdj, err := resolveColumns(raw)
	if err != nil {
		return nil, err
	}

	bars, dropped := pivot(raw, columns, synthesizeAdj)

	cleanPath, err := n.artifacts.WriteClean(runID, bars)
	if err != nil {
		return nil, fmt.Errorf("write clean artifact: %w", err)
	}

	n.logf("cleaned %d bad records, emitted %d rows to %s", dropped, len(bars), cleanPath)
	return &Result{CleanPath: cleanPath, Rows: len(bars), Dropped: dropped}, nil
}

// tickerColumns maps canonical metric name to column index for one ticker.
type tickerColumns struct {
	ticker  string
	metrics map[string]int
}

// resolveColumns validates the two-level header and indexes columns per
// ticker. Returns whether adj_close must be synthesized from close.
func resolveColumns(raw *artifact.RawTable) ([]tickerColumns, bool, error) {
	if len(raw.Header1) < 2 || len(raw.Header2) < 2 {
		return nil, false, fmt.Errorf("%w: expected two header rows with ticker and metric levels", ErrMalformedInput)
	}
	if len(raw.Header1) != len(raw.Header2) {
		return nil, false, fmt.Errorf("%w: header levels have different widths (%d vs %d)",
			ErrMalformedInput, len(raw.Header1), len(raw.Header2))
	}
	if first := strings.ToLower(strings.TrimSpace(raw.Header2[0])); first != "date" && first != "" {
		return nil, false, fmt.Errorf("%w: inner header starts with %q, want date column", ErrMalformedInput, raw.Header2[0])
	}

	order := make([]string, 0, 4)
	byTicker := make(map[string]*tickerColumns)
	hasClose := false
	hasAdj := false

	for j := 1; j < len(raw.Header2); j++ {
		ticker := strings.TrimSpace(raw.Header1[j])
		metric, ok := metricAliases[strings.ToLower(strings.TrimSpace(raw.Header2[j]))]
		if !ok {
			// A metric name on the outer level means the nesting order
			// is inverted (metric, ticker) instead of (ticker, metric).
			if _, swapped := metricAliases[strings.ToLower(strings.TrimSpace(raw.Header1[j]))]; swapped {
				return nil, false, fmt.Errorf("%w: column levels are nested metric-first", ErrMalformedInput)
			}
			return nil, false, fmt.Errorf("%w: unknown metric %q", ErrMalformedInput, raw.Header2[j])
		}
		if ticker == "" {
			return nil, false, fmt.Errorf("%w: column %d has no ticker level", ErrMalformedInput, j)
		}

		tc, ok := byTicker[ticker]
		if !ok {
			tc = &tickerColumns{ticker: ticker, metrics: make(map[string]int)}
			byTicker[ticker] = tc
			order = append(order, ticker)
		}
		tc.metrics[metric] = j

		switch metric {
		case ColClose:
			hasClose = true
		case ColAdjClose:
			hasAdj = true
		}
	}

	if !hasClose && !hasAdj {
		return nil, false, fmt.Errorf("%w: neither close nor adj_close present", ErrMissingRequiredColumn)
	}

	columns := make([]tickerColumns, 0, len(order))
	for _, t := range order {
		columns = append(columns, *byTicker[t])
	}
	return columns, !hasAdj, nil
}

// pivot turns dated wide rows into long-form bars, coercing numerics
// and dropping invalid rows. Rows that are structurally absent for a
// ticker (every cell empty) are skipped without counting as dropped.
func pivot(raw *artifact.RawTable, columns []tickerColumns, synthesizeAdj bool) ([]*domain.PriceBar, int) {
	var bars []*domain.PriceBar
	var dropped int

	for _, row := range raw.Rows {
		date, err := parseDate(row[0])
		if err != nil {
			dropped++
			continue
		}

		for _, tc := range columns {
			open := coerceFloat(cellAt(row, tc.metrics, ColOpen))
			high := coerceFloat(cellAt(row, tc.metrics, ColHigh))
			low := coerceFloat(cellAt(row, tc.metrics, ColLow))
			closePx := coerceFloat(cellAt(row, tc.metrics, ColClose))
			adjClose := coerceFloat(cellAt(row, tc.metrics, ColAdjClose))
			volume := coerceInt(cellAt(row, tc.metrics, ColVolume))

			if open == nil && high == nil && low == nil && closePx == nil && adjClose == nil && volume == nil {
				continue // ticker has no data for this date at all
			}

			if synthesizeAdj {
				adjClose = closePx
			}

			// Validation: close and open are required, and a
			// non-positive close is a provider glitch.
			if closePx == nil || open == nil || *closePx <= 0 {
				dropped++
				continue
			}
			if adjClose == nil {
				adjClose = closePx
			}

			bar := &domain.PriceBar{
				Ticker:   tc.ticker,
				Date:     date,
				Open:     *open,
				Close:    *closePx,
				AdjClose: *adjClose,
				Volume:   volume,
			}
			if high != nil {
				bar.High = *high
			}
			if low != nil {
				bar.Low = *low
			}
			bars = append(bars, bar)
		}
	}
	return bars, dropped
}

func cellAt(row []string, metrics map[string]int, metric string) string {
	j, ok := metrics[metric]
	if !ok || j >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[j])
}

// coerceFloat parses a cell, returning nil for empty or unparseable
// values (coercion failures become missing data, not fatal errors).
func coerceFloat(cell string) *float64 {
	if cell == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	return &v
}

func coerceInt(cell string) *int64 {
	if cell == "" {
		return nil
	}
	if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return &v
	}
	// Vendors sometimes serialize volume as a float.
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	return &v
}

func parseDate(cell string) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout, strings.TrimSpace(cell), time.UTC)
}

func (n *Normalizer) logf(format string, args ...interface{}) {
	if n.logger != nil {
		n.logger.Printf(format, args...)
	}
}
