package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/consolidex/consolidex/cmd/consolidex/cli"
	"github.com/consolidex/consolidex/internal/app"
	"github.com/consolidex/consolidex/internal/consolidation"
	consolhttp "github.com/consolidex/consolidex/internal/consolidation/http"
	pgstore "github.com/consolidex/consolidex/internal/consolidation/postgres"
	"github.com/consolidex/consolidex/internal/observability"
	"github.com/consolidex/consolidex/internal/platform/cache"
	"github.com/consolidex/consolidex/internal/platform/db"
	"github.com/consolidex/consolidex/internal/shared"
	"github.com/consolidex/consolidex/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobsCommand(ctx, cfg, os.Args[2:]))
	}

	dbpool, err := db.Connect(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	stores := pgstore.NewStore(dbpool).Stores()
	stores.Rates = consolidation.NewRateCache(stores.Rates, redisClient, 5*time.Minute, logger)

	locks := shared.NewPeriodLocks()
	auditRecorder := shared.NewPGAuditRecorder(dbpool)
	service := consolidation.NewService(stores, locks, auditRecorder, logger)
	consolidationHandler := consolhttp.NewHandler(logger, service)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		ConsolidationHandler: consolidationHandler,
		JobHandler:           jobHandler,
		Pool:                 dbpool,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		slog.Default().Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	if len(args) == 0 {
		slog.Default().Error("jobs: expected subcommand trigger or stats")
		return 1
	}

	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		job := fs.String("job", jobs.TaskConsolidationRun, "task type to enqueue")
		tenant := fs.String("tenant", "default", "tenant id")
		period := fs.String("period", "", "period id")
		jsonOut := fs.Bool("json", false, "emit JSON output")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		return jobsCLI.TriggerCommand(ctx, cli.TriggerOptions{
			Job:        *job,
			TenantID:   *tenant,
			PeriodID:   *period,
			JSONOutput: *jsonOut,
		})
	case "stats":
		fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
		jsonOut := fs.Bool("json", false, "emit JSON output")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		return jobsCLI.StatsCommand(ctx, *jsonOut, nil, nil)
	default:
		slog.Default().Error("jobs: unknown subcommand", slog.String("cmd", args[0]))
		return 1
	}
}
