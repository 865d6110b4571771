package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aegis-soc/aegis-soc/internal/alerts"
	"github.com/aegis-soc/aegis-soc/internal/app"
	"github.com/aegis-soc/aegis-soc/internal/directory"
	"github.com/aegis-soc/aegis-soc/internal/livesync"
	"github.com/aegis-soc/aegis-soc/internal/observability"
	"github.com/aegis-soc/aegis-soc/internal/platform/cache"
	"github.com/aegis-soc/aegis-soc/internal/platform/db"
	"github.com/aegis-soc/aegis-soc/internal/rbac"
	"github.com/aegis-soc/aegis-soc/internal/session"
	"github.com/aegis-soc/aegis-soc/jobs"
)

// syncObserver feeds synchronizer lifecycle events into metrics and logs.
type syncObserver struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

func (o syncObserver) RefreshApplied(collection string, records int) {
	o.metrics.RecordSyncRefresh(collection)
	o.logger.Debug("collection refreshed",
		slog.String("collection", collection),
		slog.Int("records", records))
}

func (o syncObserver) StatusChanged(collection string, status livesync.Status) {
	o.logger.Warn("sync status changed",
		slog.String("collection", collection),
		slog.String("status", string(status)))
}

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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	rbacService := rbac.NewService()
	dirRepo := directory.NewRepository(dbpool)
	dirService := directory.NewService(dirRepo, rbacService)

	sessionStore := session.NewRedisKV(redisClient)
	sessionManager := session.NewManager(logger, dirService, sessionStore, nil)
	rbacMiddleware := rbac.Middleware{Source: sessionManager, Logger: logger}

	publisher := livesync.NewPublisher(redisClient)
	alertStore := alerts.NewStore(dbpool, publisher, logger)
	feed := livesync.NewRedisFeed(redisClient)
	synchronizer := livesync.New[alerts.Alert](logger, alertStore, feed,
		syncObserver{logger: logger, metrics: metrics},
		livesync.Config{
			Collection:   alerts.Collection,
			FetchTimeout: cfg.SyncFetchTimeout,
			RetryBackoff: cfg.SyncRetryBackoff,
			MaxRetries:   cfg.SyncMaxRetries,
		})
	handle, err := synchronizer.Start(ctx)
	if err != nil {
		logger.Error("start synchronizer", slog.Any("error", err))
		os.Exit(1)
	}
	defer handle.Stop()

	sessionHandler := session.NewHandler(logger, sessionManager, metrics)
	directoryHandler := directory.NewHandler(logger, dirService, sessionManager, rbacMiddleware)
	alertsHandler := alerts.NewHandler(logger, alertStore, handle, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(rbacService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("build jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobsClient, logger,
		rbacMiddleware.Require("system", rbac.ActionWrite))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionHandler:     sessionHandler,
		DirectoryHandler:   directoryHandler,
		AlertsHandler:      alertsHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
