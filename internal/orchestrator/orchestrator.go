// Package orchestrator provides E2E pipeline orchestration.
// It coordinates: extract → normalize → load → factors → reconcile
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"market-pipeline/internal/extract"
	"market-pipeline/internal/factors"
	"market-pipeline/internal/load"
	"market-pipeline/internal/normalize"
	"market-pipeline/internal/observability"
	"market-pipeline/internal/reconcile"
)

// Orchestrator coordinates one end-to-end pipeline run.
// A skip in the extract/normalize/load chain propagates forward, but
// the factor rebuild and reconciliation always run against whatever
// history is already stored.
type Orchestrator struct {
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	loader     *load.Loader
	engine     *factors.Engine
	reconciler *reconcile.Reconciler
	metrics    *observability.Metrics
	verbose    bool
}

// Options for creating Orchestrator.
type Options struct {
	Extractor  *extract.Extractor
	Normalizer *normalize.Normalizer
	Loader     *load.Loader
	Engine     *factors.Engine
	Reconciler *reconcile.Reconciler

	Metrics *observability.Metrics // optional
	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		extractor:  opts.Extractor,
		normalizer: opts.Normalizer,
		loader:     opts.Loader,
		engine:     opts.Engine,
		reconciler: opts.Reconciler,
		metrics:    opts.Metrics,
		verbose:    opts.Verbose,
	}
}

// RunResult contains results from one pipeline run.
type RunResult struct {
	RunID string

	ExtractSkipped bool
	RowsCleaned    int
	RowsDropped    int
	RowsLoaded     int
	Cursor         time.Time

	FactorRows    int
	GapsFound     int
	GapsRepaired  int
	FetchFailures int
}

// Run executes the full pipeline once. Each run gets a fresh ID that
// names its on-disk artifacts.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	runID := uuid.NewString()
	result := &RunResult{RunID: runID}
	o.log("run %s starting", runID)

	// Phase 1: Extract
	o.log("Phase 1: Extracting market data...")
	var rawPath string
	_, err := o.timed(ctx, "extract", func(ctx context.Context) (bool, error) {
		r, err := o.extractor.Run(ctx, runID)
		if err != nil {
			return false, err
		}
		result.ExtractSkipped = r.Skipped
		if !r.Skipped {
			rawPath = r.RawPath
			o.log("  Wrote raw artifact %s for [%s, %s)",
				r.RawPath, r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
		}
		return r.Skipped, nil
	})
	if err != nil {
		o.recordRun("error")
		return nil, fmt.Errorf("phase 1 (extract) failed: %w", err)
	}

	// Phase 2: Normalize
	o.log("Phase 2: Normalizing...")
	var cleanPath string
	_, err = o.timed(ctx, "normalize", func(ctx context.Context) (bool, error) {
		r, err := o.normalizer.Run(ctx, runID, rawPath)
		if err != nil {
			return false, err
		}
		if !r.Skipped {
			cleanPath = r.CleanPath
			result.RowsCleaned = r.Rows
			result.RowsDropped = r.Dropped
			if o.metrics != nil {
				o.metrics.RowsDropped.Add(float64(r.Dropped))
			}
			o.log("  Emitted %d clean rows (%d dropped)", r.Rows, r.Dropped)
		}
		return r.Skipped, nil
	})
	if err != nil {
		o.recordRun("error")
		return nil, fmt.Errorf("phase 2 (normalize) failed: %w", err)
	}

	// Phase 3: Load
	o.log("Phase 3: Loading...")
	_, err = o.timed(ctx, "load", func(ctx context.Context) (bool, error) {
		r, err := o.loader.Run(ctx, cleanPath)
		if err != nil {
			return false, err
		}
		if !r.Skipped {
			result.RowsLoaded = r.RowsLoaded
			result.Cursor = r.Cursor
			if o.metrics != nil {
				o.metrics.RowsLoaded.Add(float64(r.RowsLoaded))
				if !r.Cursor.IsZero() {
					o.metrics.CursorDate.Set(float64(r.Cursor.Unix()))
				}
			}
			o.log("  Loaded %d rows", r.RowsLoaded)
		}
		return r.Skipped, nil
	})
	if err != nil {
		o.recordRun("error")
		return nil, fmt.Errorf("phase 3 (load) failed: %w", err)
	}

	// Phase 4: Factor rebuild (always runs; stored history may predate
	// this run even when nothing new was loaded)
	o.log("Phase 4: Rebuilding factors...")
	_, err = o.timed(ctx, "factors", func(ctx context.Context) (bool, error) {
		r, err := o.engine.Run(ctx)
		if err != nil {
			return false, err
		}
		if !r.Skipped {
			result.FactorRows = r.Rows
			if o.metrics != nil {
				o.metrics.FactorRows.Set(float64(r.Rows))
			}
			o.log("  Rebuilt %d factor rows", r.Rows)
		}
		return r.Skipped, nil
	})
	if err != nil {
		o.recordRun("error")
		return nil, fmt.Errorf("phase 4 (factors) failed: %w", err)
	}

	// Phase 5: Reconcile
	o.log("Phase 5: Reconciling gaps...")
	_, err = o.timed(ctx, "reconcile", func(ctx context.Context) (bool, error) {
		r, err := o.reconciler.Run(ctx)
		if err != nil {
			return false, err
		}
		result.GapsFound = r.GapsFound
		result.GapsRepaired = r.Repaired
		result.FetchFailures = r.FetchFailures
		if o.metrics != nil {
			o.metrics.GapsFound.Add(float64(r.GapsFound))
			o.metrics.GapsRepaired.Add(float64(r.Repaired))
			o.metrics.FetchFailures.Add(float64(r.FetchFailures))
		}
		o.log("  %d gaps found, %d repaired", r.GapsFound, r.Repaired)
		return r.Skipped, nil
	})
	if err != nil {
		o.recordRun("error")
		return nil, fmt.Errorf("phase 5 (reconcile) failed: %w", err)
	}

	o.recordRun("success")
	if o.metrics != nil {
		o.metrics.LastSuccessfulRun.SetToCurrentTime()
	}
	o.log("run %s completed: %d loaded, %d factor rows, %d gaps repaired",
		runID, result.RowsLoaded, result.FactorRows, result.GapsRepaired)

	return result, nil
}

// timed wraps a phase with duration and skip metrics.
func (o *Orchestrator) timed(ctx context.Context, stage string, fn func(context.Context) (bool, error)) (bool, error) {
	start := time.Now()
	skipped, err := fn(ctx)
	if o.metrics != nil && err == nil {
		o.metrics.RecordStage(stage, time.Since(start).Seconds(), skipped)
	}
	return skipped, err
}

func (o *Orchestrator) recordRun(status string) {
	if o.metrics != nil {
		o.metrics.RecordRun(status)
	}
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}
