package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/epireve/currency-api/internal/dedup"
	"github.com/epireve/currency-api/internal/fetcher"
	"github.com/epireve/currency-api/internal/metrics"
	"github.com/epireve/currency-api/internal/pipeline"
	"github.com/epireve/currency-api/internal/platform/sqlite"
	raterepo "github.com/epireve/currency-api/internal/repository/rate"
	runrepo "github.com/epireve/currency-api/internal/repository/run"
	"github.com/epireve/currency-api/internal/run"
	"github.com/epireve/currency-api/internal/server"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape the configured date range into the database",
		Example: `  fxscrape run --start 2024-04-01 --end 2024-04-30 --bases EUR,USD
  FXSCRAPE_CONCURRENCY=10 fxscrape run --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runScrape(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("start", "", "first day, YYYY-MM-DD (default 2024-04-01)")
	f.String("end", "", "last day, inclusive, YYYY-MM-DD (default 2025-01-01)")
	f.StringSlice("bases", nil, "base currencies (default EUR,USD,GBP)")
	f.Int("concurrency", 0, "maximum fetches in flight (default 5)")
	f.Int("retries", 0, "attempts per fetch (default 3)")
	f.Int("batch-size", 0, "rows per database transaction (default 50)")
	f.String("missing-dates", "", "missing dates report path (default missing_dates.log)")
	f.String("metrics-addr", "", "serve /metrics and the status API on this address while running")
	a.bind(cmd, map[string]string{
		"start_date":         "start",
		"end_date":           "end",
		"base_currencies":    "bases",
		"concurrency":        "concurrency",
		"retry_count":        "retries",
		"batch_size":         "batch-size",
		"missing_dates_path": "missing-dates",
		"metrics_addr":       "metrics-addr",
	})

	return cmd
}

func (a *app) runScrape(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	m := metrics.New()
	rateRepo := raterepo.NewRepository(db.DB)
	runSvc := run.NewService(runrepo.NewRepository(db.DB), logger)

	if err := runSvc.RecoverStaleRuns(ctx); err != nil {
		logger.Error("failed to recover stale runs", "error", err)
	}

	if cfg.MetricsAddr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		srv := server.New(srvCtx, cfg.MetricsAddr, server.NewHandler(runSvc, rateRepo, m, logger), logger)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := srv.Run(srvCtx); err != nil {
				logger.Error("status server error", "error", err)
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	gate, err := dedup.NewGate(rateRepo, cfg.DedupCacheSize, dedup.WithLogger(logger))
	if err != nil {
		return err
	}
	defer gate.Close()

	loc, err := fetcher.NewLocator(cfg.URLTemplate, cfg.APIVersion)
	if err != nil {
		return err
	}
	f := fetcher.New(
		fetcher.WithClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		fetcher.WithMaxAttempts(cfg.RetryCount),
		fetcher.WithBackoff(cfg.BackoffUnit, cfg.BackoffJitter),
		fetcher.WithLogger(logger),
		fetcher.WithMetrics(m),
	)
	persister := pipeline.NewPersister(rateRepo,
		pipeline.WithMarker(gate),
		pipeline.WithPersisterLogger(logger),
		pipeline.WithPersisterMetrics(m),
	)

	orch, err := pipeline.New(pipeline.Config{
		From:             cfg.StartDate,
		To:               cfg.EndDate,
		Bases:            cfg.BaseCurrencies,
		Concurrency:      cfg.Concurrency,
		BatchSize:        cfg.BatchSize,
		MissingDatesPath: cfg.MissingDatesPath,
	}, gate, f, loc, persister, pipeline.WithLogger(logger), pipeline.WithMetrics(m))
	if err != nil {
		return err
	}

	rec, err := runSvc.Begin(ctx, cfg.StartDate, cfg.EndDate, cfg.BaseCurrencies)
	if err != nil {
		return err
	}
	logger.Info("run recorded", "runID", rec.ID)

	report, runErr := orch.Run(ctx)

	var res run.Result
	if report != nil {
		res = run.Result{RowsPersisted: report.RowsPersisted, MissingDates: len(report.MissingDates)}
		if len(report.MissingDates) > 0 && runErr == nil {
			logger.Warn("some dates have no data", "count", len(report.MissingDates), "file", report.MissingPath)
		}
	}
	if err := runSvc.Finish(ctx, rec, res, runErr); err != nil {
		logger.Error("failed to record run result", "runID", rec.ID, "error", err)
	}

	if errors.Is(runErr, context.Canceled) {
		logger.Warn("run interrupted, committed rows are kept", "runID", rec.ID, "rowsPersisted", res.RowsPersisted)
	}
	return runErr
}
