// Package main provides the long-running service:
// - Pipeline (scheduled): extract → normalize → load → factors → reconcile
// - Read API: /api/tickers, /api/prices/{ticker}
// - Prometheus metrics endpoint
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"market-pipeline/internal/api"
	"market-pipeline/internal/artifact"
	"market-pipeline/internal/config"
	"market-pipeline/internal/domain"
	"market-pipeline/internal/extract"
	"market-pipeline/internal/factors"
	"market-pipeline/internal/load"
	"market-pipeline/internal/marketdata"
	"market-pipeline/internal/normalize"
	"market-pipeline/internal/observability"
	"market-pipeline/internal/orchestrator"
	"market-pipeline/internal/reconcile"
	"market-pipeline/internal/storage"
	chstore "market-pipeline/internal/storage/clickhouse"
	"market-pipeline/internal/storage/memory"
	"market-pipeline/internal/storage/migrations"
	pgstore "market-pipeline/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	runOnStart := flag.Bool("run-on-start", false, "Run the pipeline once at startup")
	verbose := flag.Bool("verbose", true, "Verbose pipeline output")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down", sig)
		cancel()
	}()

	var (
		bars  storage.BarStore
		facts storage.FactorStore
		state storage.StateStore
		reads storage.ReadStore
	)
	if *useMemory {
		mem := memory.NewBarStore()
		mf := memory.NewFactorStore()
		bars, state, facts = mem, mem, mf
		reads = memory.NewReadStore(mem, mf)
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
		reads = pgstore.NewReadStore(pool)
	}

	// Optional ClickHouse mirror: factor snapshots fan out to both
	// stores so analytical queries never touch Postgres.
	if cfg.Database.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Database.ClickHouseDSN)
		if err != nil {
			logger.Fatalf("connect clickhouse: %v", err)
		}
		defer conn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatalf("run clickhouse migrations: %v", err)
		}
		facts = &teeFactorStore{primary: facts, mirror: chstore.NewFactorStore(conn), logger: logger}
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

	metrics := observability.NewMetrics("")
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
		Metrics:    metrics,
		Verbose:    *verbose,
	})

	runner := &scheduledRunner{orch: orch, logger: logger}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Server.Schedule, func() { runner.run(ctx) }); err != nil {
		logger.Fatalf("bad schedule %q: %v", cfg.Server.Schedule, err)
	}
	c.Start()
	defer c.Stop()
	logger.Printf("pipeline scheduled: %s", cfg.Server.Schedule)

	if *runOnStart {
		go runner.run(ctx)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		logger.Printf("metrics listening on %s", cfg.Server.MetricsAddr)
		if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil {
			logger.Printf("metrics server: %v", err)
		}
	}()

	// Read API (blocks until shutdown)
	apiServer := api.NewServer(reads, logger)
	logger.Printf("api listening on %s", cfg.Server.APIAddr)
	if err := apiServer.ListenAndServe(ctx, cfg.Server.APIAddr); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("api server: %v", err)
	}
}

// scheduledRunner serializes pipeline runs: a tick that fires while a
// run is still in flight is dropped, not queued.
type scheduledRunner struct {
	orch   *orchestrator.Orchestrator
	logger *log.Logger

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

func (r *scheduledRunner) run(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.Printf("pipeline already running, skipping this tick")
		return
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.lastRun = time.Now()
		r.mu.Unlock()
	}()

	result, err := r.orch.Run(ctx)
	if err != nil {
		r.logger.Printf("pipeline run failed: %v", err)
		return
	}
	r.logger.Printf("pipeline run %s: %d loaded, %d factor rows, %d gaps repaired",
		result.RunID, result.RowsLoaded, result.FactorRows, result.GapsRepaired)
}

// teeFactorStore writes factor snapshots to the primary store and
// best-effort mirrors them to ClickHouse. Reads come from the primary.
type teeFactorStore struct {
	primary storage.FactorStore
	mirror  storage.FactorStore
	logger  *log.Logger
}

func (t *teeFactorStore) ReplaceAll(ctx context.Context, rows []*domain.FactorRow) error {
	if err := t.primary.ReplaceAll(ctx, rows); err != nil {
		return err
	}
	if err := t.mirror.ReplaceAll(ctx, rows); err != nil {
		t.logger.Printf("clickhouse mirror failed: %v", err)
	}
	return nil
}

func (t *teeFactorStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.FactorRow, error) {
	return t.primary.GetByTicker(ctx, ticker)
}
