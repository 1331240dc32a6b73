package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/consolidex/consolidex/internal/app"
	"github.com/consolidex/consolidex/internal/consolidation"
	pgstore "github.com/consolidex/consolidex/internal/consolidation/postgres"
	jobmetrics "github.com/consolidex/consolidex/internal/jobs"
	"github.com/consolidex/consolidex/internal/observability"
	"github.com/consolidex/consolidex/internal/platform/cache"
	"github.com/consolidex/consolidex/internal/platform/db"
	"github.com/consolidex/consolidex/internal/shared"
	"github.com/consolidex/consolidex/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	stores := pgstore.NewStore(pool).Stores()
	stores.Rates = consolidation.NewRateCache(stores.Rates, redisClient, 5*time.Minute, logger)

	locks := shared.NewPeriodLocks()
	auditRecorder := shared.NewPGAuditRecorder(pool)
	service := consolidation.NewService(stores, locks, auditRecorder, logger)

	appMetrics := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(appMetrics.Registerer())
	periodLock := shared.NewDistributedPeriodLock(redisClient, cfg.LockTTL)

	runJob := jobs.NewConsolidationRunJob(service, periodLock, logger, metrics, appMetrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskConsolidationRun, Handler: runJob.HandleRun},
			{Type: jobs.TaskIntercompanySweep, Handler: runJob.HandleSweep},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
