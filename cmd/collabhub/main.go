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
	"github.com/joho/godotenv"

	"github.com/collabhub/collabhub/internal/app"
	"github.com/collabhub/collabhub/internal/auth"
	"github.com/collabhub/collabhub/internal/guard"
	"github.com/collabhub/collabhub/internal/observability"
	"github.com/collabhub/collabhub/internal/platform/cache"
	"github.com/collabhub/collabhub/internal/platform/clock"
	"github.com/collabhub/collabhub/internal/platform/db"
	"github.com/collabhub/collabhub/internal/sessions"
	sessionshttp "github.com/collabhub/collabhub/internal/sessions/http"
	"github.com/collabhub/collabhub/internal/shared"
	"github.com/collabhub/collabhub/jobs"
)

const sessionCookieName = "collabhub_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()
	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Error("migrate postgres", slog.Any("error", err))
		os.Exit(1)
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

	clk := clock.Real()
	metrics := observability.NewMetrics()

	store, err := app.NewSessionStore(cfg, redisClient, dbpool, clk)
	if err != nil {
		logger.Error("init session store", slog.Any("error", err))
		os.Exit(1)
	}
	registry := sessions.NewRegistry(store, sessions.RegistryConfig{
		Clock:    clk,
		Logger:   logger,
		Recorder: metrics,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookieName, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, clk)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	authService := auth.NewService(auth.NewRepository(dbpool), registry, jobsClient, logger)
	authHandler := auth.NewHandler(logger, authService, tokens, sessionManager, csrfManager)

	routeGuard := guard.Guard{
		Store:         store,
		Registry:      registry,
		SignOut:       authHandler,
		Clock:         clk,
		Logger:        logger,
		Recorder:      metrics,
		Window:        cfg.SessionInactivityWindow,
		TouchInterval: cfg.SessionTouchInterval,
	}
	sessionsHandler := sessionshttp.NewHandler(logger, authService, authHandler, store, clk, metrics, sessionshttp.Config{
		Window:        cfg.SessionInactivityWindow,
		CheckInterval: cfg.SessionCheckInterval,
		MaxStaleness:  cfg.SessionMaxStaleness,
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		Tokens:          tokens,
		AuthHandler:     authHandler,
		Guard:           routeGuard,
		SessionsHandler: sessionsHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("session_store", cfg.SessionStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
