// Package main provides a standalone gap-repair entry point. It runs
// only the reconciliation phase against existing stored history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"market-pipeline/internal/config"
	"market-pipeline/internal/marketdata"
	"market-pipeline/internal/reconcile"
	"market-pipeline/internal/storage/migrations"
	pgstore "market-pipeline/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	reference := flag.String("reference", "", "Override the reference ticker")
	flag.Parse()

	logger := log.New(os.Stdout, "[repair] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *reference == "" {
		*reference = cfg.Market.ReferenceTicker
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, cancelling", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	var clientOpts []marketdata.YahooOption
	if cfg.Market.ProviderURL != "" {
		clientOpts = append(clientOpts, marketdata.WithBaseURL(cfg.Market.ProviderURL))
	}
	clientOpts = append(clientOpts, marketdata.WithTimeout(cfg.Market.FetchTimeout()))
	client := marketdata.NewYahooClient(clientOpts...)

	rec := reconcile.New(pgstore.NewBarStore(pool), client, *reference, logger)
	result, err := rec.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Repair error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Repair completed:\n")
	fmt.Printf("  Gaps found:     %d\n", result.GapsFound)
	fmt.Printf("  Repaired:       %d\n", result.Repaired)
	fmt.Printf("  No data:        %d\n", result.SkippedNoData)
	fmt.Printf("  Fetch failures: %d\n", result.FetchFailures)
}
