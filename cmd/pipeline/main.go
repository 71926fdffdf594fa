// Package main provides the one-shot pipeline entry point.
// Executes: extract → normalize → load → factors → reconcile
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/config"
	"market-pipeline/internal/extract"
	"market-pipeline/internal/factors"
	"market-pipeline/internal/load"
	"market-pipeline/internal/marketdata"
	"market-pipeline/internal/normalize"
	"market-pipeline/internal/orchestrator"
	"market-pipeline/internal/reconcile"
	"market-pipeline/internal/storage"
	"market-pipeline/internal/storage/memory"
	"market-pipeline/internal/storage/migrations"
	pgstore "market-pipeline/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, cancelling run", sig)
		cancel()
	}()

	var (
		bars  storage.BarStore
		facts storage.FactorStore
		state storage.StateStore
	)
	if *useMemory {
		mem := memory.NewBarStore()
		bars, state = mem, mem
		facts = memory.NewFactorStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("run migrations: %v", err)
		}
		bars = pgstore.NewBarStore(pool)
		facts = pgstore.NewFactorStore(pool)
		state = pgstore.NewStateStore(pool)
	}

	artifacts, err := artifact.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		logger.Fatalf("create artifact dir: %v", err)
	}

	var clientOpts []marketdata.YahooOption
	if cfg.Market.ProviderURL != "" {
		clientOpts = append(clientOpts, marketdata.WithBaseURL(cfg.Market.ProviderURL))
	}
	clientOpts = append(clientOpts, marketdata.WithTimeout(cfg.Market.FetchTimeout()))
	client := marketdata.NewYahooClient(clientOpts...)

	orch := orchestrator.New(orchestrator.Options{
		Extractor: extract.New(extract.Options{
			State:     state,
			Client:    client,
			Artifacts: artifacts,
			Symbols:   cfg.Market.Symbols,
			Lookback:  cfg.Market.LookbackDays,
			Logger:    logger,
		}),
		Normalizer: normalize.New(artifacts, logger),
		Loader:     load.New(bars, artifacts, logger),
		Engine:     factors.NewEngine(bars, facts, logger),
		Reconciler: reconcile.New(bars, client, cfg.Market.ReferenceTicker, logger),
		Verbose:    *verbose,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Pipeline run %s completed:\n", result.RunID)
	fmt.Printf("  Rows cleaned:  %d (%d dropped)\n", result.RowsCleaned, result.RowsDropped)
	fmt.Printf("  Rows loaded:   %d\n", result.RowsLoaded)
	fmt.Printf("  Factor rows:   %d\n", result.FactorRows)
	fmt.Printf("  Gaps repaired: %d of %d\n", result.GapsRepaired, result.GapsFound)
}
