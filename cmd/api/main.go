package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vialog/nfe-tracker/internal/classifier"
	"github.com/vialog/nfe-tracker/internal/config"
	"github.com/vialog/nfe-tracker/internal/fetcher"
	"github.com/vialog/nfe-tracker/internal/handler"
	"github.com/vialog/nfe-tracker/internal/infra/postgresql"
	"github.com/vialog/nfe-tracker/internal/infra/postgresql/migrations"
	infraredis "github.com/vialog/nfe-tracker/internal/infra/redis"
	"github.com/vialog/nfe-tracker/internal/ingest"
	"github.com/vialog/nfe-tracker/internal/normalizer"
	"github.com/vialog/nfe-tracker/internal/observability"
	"github.com/vialog/nfe-tracker/internal/repository"
	"github.com/vialog/nfe-tracker/internal/scheduler"
	"github.com/vialog/nfe-tracker/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	store := repository.NewGormStore(db)

	parser, err := normalizer.ForFormat(cfg.ResponseFormat)
	if err != nil {
		logger.Fatal("normalizer initialization failed", zap.Error(err))
	}

	var (
		cls      classifier.Classifier
		resolver ingest.CodeResolver
		reloader handler.TableReloader
	)
	switch cfg.ClassifierStrategy {
	case config.ClassifierTable:
		table, err := classifier.NewTableClassifier(store.Occurrences(), logger)
		if err != nil {
			logger.Fatal("table classifier initialization failed", zap.Error(err))
		}
		if err := table.Reload(ctx); err != nil {
			logger.Fatal("loading occurrence code table failed", zap.Error(err))
		}
		cls, resolver, reloader = table, table, table
	default:
		cls = classifier.NewPatternClassifier(nil, nil)
	}

	restyClient := resty.New()
	restyClient.SetTimeout(cfg.FetchTimeout)
	fetch, err := fetcher.NewFetcherWithClient(
		cfg.TrackingAPIURL,
		parser,
		limiter,
		fetcher.RetryPolicy{MaxAttempts: cfg.FetchMaxAttempts},
		logger,
		restyClient,
	)
	if err != nil {
		logger.Fatal("fetcher initialization failed", zap.Error(err))
	}

	ingestor, err := ingest.NewService(store, cls, resolver, logger, metrics)
	if err != nil {
		logger.Fatal("ingest service initialization failed", zap.Error(err))
	}

	supervisor, err := scheduler.NewSupervisor(
		store.Statuses(),
		fetch,
		ingestor,
		scheduler.TiersFromConfig(cfg),
		scheduler.Options{
			Concurrency:    cfg.WorkerConcurrency,
			SelectionCap:   cfg.SelectionCap,
			DispatchWindow: time.Duration(cfg.DispatchWindowDays) * 24 * time.Hour,
			SeedInterval:   cfg.SeederInterval,
		},
		logger,
		metrics,
	)
	if err != nil {
		logger.Fatal("supervisor initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterTrackingRoutes(app, store.Statuses(), store.Events(), supervisor); err != nil {
		logger.Fatal("registering tracking routes failed", zap.Error(err))
	}
	if err := handler.RegisterAdminRoutes(app, store.Carriers(), store.Occurrences(), reloader); err != nil {
		logger.Fatal("registering admin routes failed", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("reconciliation supervisor started",
			zap.Int("workers", cfg.WorkerConcurrency),
			zap.Int("selectionCap", cfg.SelectionCap),
		)
		return supervisor.Start(ctx)
	})
	g.Go(func() error {
		logger.Info("nfe-tracker api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal("service stopped unexpectedly", zap.Error(err))
	}
}
