package factors

import (
	"context"
	"fmt"
	"log"

	"market-pipeline/internal/storage"
)

// Engine recomputes the indicator table from the full stored price
// history and swaps it in atomically.
type Engine struct {
	bars    storage.BarStore
	factors storage.FactorStore
	logger  *log.Logger
}

// NewEngine creates an Engine.
func NewEngine(bars storage.BarStore, factors storage.FactorStore, logger *log.Logger) *Engine {
	return &Engine{bars: bars, factors: factors, logger: logger}
}

// Result is the Engine's stage outcome.
type Result struct {
	Skipped bool
	Rows    int
}

// Run rebuilds analytics.factors from raw.price_ohlcv. An empty price
// table is not an error: the run warns and leaves the existing factor
// table alone.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	bars, err := e.bars.AllOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("read price history: %w", err)
	}
	if len(bars) == 0 {
		e.logf("warning: price table is empty, keeping existing factors")
		return &Result{Skipped: true}, nil
	}

	rows := Compute(bars)
	if err := e.factors.ReplaceAll(ctx, rows); err != nil {
		return nil, fmt.Errorf("replace factors: %w", err)
	}

	e.logf("recomputed %d factor rows from %d bars", len(rows), len(bars))
	return &Result{Rows: len(rows)}, nil
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
