// Package load persists clean artifacts into canonical storage.
package load

import (
	"context"
	"fmt"
	"log"
	"time"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/storage"
)

// Loader upserts clean rows into the bar store. The cursor advance
// rides in the same transaction as the bar writes, so a crash mid-load
// never leaves the cursor ahead of the data.
type Loader struct {
	bars      storage.BarStore
	artifacts *artifact.Store
	logger    *log.Logger
}

// New creates a Loader.
func New(bars storage.BarStore, artifacts *artifact.Store, logger *log.Logger) *Loader {
	return &Loader{bars: bars, artifacts: artifacts, logger: logger}
}

// Result is the Loader's stage outcome.
type Result struct {
	Skipped    bool
	RowsLoaded int
	Cursor     time.Time // zero when no rows were loaded
}

// Run loads the clean artifact at cleanPath. An empty cleanPath means
// an upstream stage skipped, which flows through. An empty artifact
// loads nothing and leaves the cursor untouched.
func (l *Loader) Run(ctx context.Context, cleanPath string) (*Result, error) {
	if cleanPath == "" {
		l.logf("no clean data to load, skipping")
		return &Result{Skipped: true}, nil
	}

	bars, err := l.artifacts.ReadClean(cleanPath)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		l.logf("clean artifact %s has no rows, nothing to load", cleanPath)
		return &Result{}, nil
	}

	cursor, err := l.bars.LoadBatch(ctx, bars)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}

	l.logf("loaded %d rows, cursor advanced to %s", len(bars), cursor.Format("2006-01-02"))
	return &Result{RowsLoaded: len(bars), Cursor: cursor}, nil
}

func (l *Loader) logf(format string, args ...interface{}) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}
