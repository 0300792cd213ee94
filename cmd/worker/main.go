package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/collabhub/collabhub/internal/app"
	jobmetrics "github.com/collabhub/collabhub/internal/jobs"
	"github.com/collabhub/collabhub/internal/observability"
	"github.com/collabhub/collabhub/internal/platform/cache"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/platform/db"
	"github.com/collabhub/collabhub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	var pool *pgxpool.Pool
	if cfg.SessionStore == app.SessionStorePostgres {
		pool, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4})
		if err != nil {
			logger.Error("connect database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store, err := app.NewSessionStore(cfg, redisClient, pool, clock.Real())
	if err != nil {
		logger.Error("init session store", slog.Any("error", err))
		os.Exit(1)
	}

	observed := observability.NewMetrics()
	metrics := jobmetrics.NewMetrics(observed.Registerer())

	sweepJob := jobs.NewSweepJob(store, cfg.SessionInactivityWindow, logger, metrics).WithRecorder(observed)
	noticeJob := jobs.NewSignInNoticeJob(jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom), logger, metrics)

	sweepTask, err := jobs.NewSweepTask(jobs.SweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionsSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskSignInNotice, Handler: noticeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionSweepCron, Task: sweepTask, Options: []asynq.Option{
				asynq.MaxRetry(1),
				asynq.Unique(5 * time.Minute),
			}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           observed.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker",
		slog.String("session_store", cfg.SessionStore),
		slog.String("sweep_cron", cfg.SessionSweepCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
