package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"book_harvester/internal/api"
	"book_harvester/internal/assets"
	"book_harvester/internal/classify"
	"book_harvester/internal/config"
	"book_harvester/internal/content"
	"book_harvester/internal/covers"
	"book_harvester/internal/dedup"
	"book_harvester/internal/filter"
	"book_harvester/internal/harvest"
	"book_harvester/internal/metrics"
	"book_harvester/internal/publisher"
	"book_harvester/internal/scheduler"
	"book_harvester/internal/source"
	"book_harvester/internal/source/gutendex"
	"book_harvester/internal/source/openlibrary"
	"book_harvester/internal/source/sitescan"
	"book_harvester/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, err := postgres.Migrate(db)
	if err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database ready", "migration_version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	writer, err := assets.NewWriter(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize asset storage", "error", err)
		os.Exit(1)
	}

	bookStore := postgres.NewBookStore(db)
	configStore := postgres.NewSourceConfigStore(db)
	cursorStore := postgres.NewCursorStore(db)
	statsStore := postgres.NewStatsStore(db)
	jobStore := postgres.NewJobStore(db)
	decisionStore := postgres.NewFilterDecisionStore(db)
	txManager := postgres.NewTransactionManager(db)

	registry := source.NewRegistry(logger)
	fetchers := []source.Fetcher{
		openlibrary.New(openlibrary.Config{
			BaseURL:      cfg.Sources.OpenLibrary.BaseURL,
			AssetBaseURL: cfg.Sources.OpenLibrary.AssetBaseURL,
			Timeout:      cfg.Sources.OpenLibrary.Timeout,
		}, logger),
		gutendex.New(gutendex.Config{
			BaseURL:      cfg.Sources.Gutendex.BaseURL,
			AssetBaseURL: cfg.Sources.Gutendex.AssetBaseURL,
			Timeout:      cfg.Sources.Gutendex.Timeout,
		}, logger),
	}
	if cfg.Sources.SiteScan.IndexURL != "" {
		fetchers = append(fetchers, sitescan.New(sitescan.Config{
			IndexURL: cfg.Sources.SiteScan.IndexURL,
			Timeout:  cfg.Sources.SiteScan.Timeout,
		}, logger))
	}
	for _, f := range fetchers {
		// A fetcher that fails validation is left out; the others still run.
		if err := registry.Register(f); err != nil {
			logger.Error("source excluded from this deployment", "error", err)
			continue
		}
		md := f.Metadata()
		if err := configStore.EnsureRegistered(ctx, f.SourceID(), md.DefaultRateLimit, md.DefaultBatchSize); err != nil {
			logger.Error("failed to register source config", "source", f.SourceID(), "error", err)
			os.Exit(1)
		}
	}

	orchestrator := harvest.NewOrchestrator(harvest.Deps{
		Registry:  registry,
		Books:     bookStore,
		Dedup:     dedup.New(bookStore, logger),
		Configs:   configStore,
		Cursors:   cursorStore,
		Stats:     statsStore,
		Jobs:      jobStore,
		Audit:     decisionStore,
		Filters:   filter.NewEngine(cfg.Harvest.Filters),
		Classify:  classify.NewClient(cfg.Classifier, logger),
		Covers:    covers.NewClient(cfg.CoverSearch, logger),
		Validator: content.NewValidator(cfg.Harvest.AssetTimeout, cfg.Harvest.MaxAssetBytes),
		Writer:    writer,
		Publisher: rabbitMQ,
		TxManager: txManager,
		Recorder:  metrics.New(),
	}, cfg.Harvest, logger)

	handler := api.NewHandler(orchestrator, jobStore, statsStore, configStore, logger)
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewServer(handler, cfg.HTTP.AccessKey, logger),
	}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("starting book harvester",
		"sources", registry.SourceIDs(),
		"interval", cfg.Harvest.Interval,
	)

	sched := scheduler.NewScheduler(orchestrator, cfg.Harvest.Interval, logger)
	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
