package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/scolaris/scolaris/internal/app"
	"github.com/scolaris/scolaris/internal/auth"
	"github.com/scolaris/scolaris/internal/chat"
	jobmetrics "github.com/scolaris/scolaris/internal/jobs"
	"github.com/scolaris/scolaris/internal/platform/cache"
	"github.com/scolaris/scolaris/internal/platform/db"
	"github.com/scolaris/scolaris/internal/school"
	"github.com/scolaris/scolaris/internal/shared"
	"github.com/scolaris/scolaris/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	metrics := jobmetrics.NewMetrics(nil)

	chatRepo := chat.NewRepository(pool)
	chatService := chat.NewService(chatRepo, school.NewFactsRepository(pool), chat.NewUnreadCounter(redisClient), shared.NewAuditLogger(pool))

	authRepo := auth.NewRepository(pool)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBulkMessage, Handler: jobs.BulkMessageHandler(chatService, metrics, logger)},
			{Type: jobs.TaskSessionCleanup, Handler: jobs.SessionCleanupHandler(authRepo, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 2 * * *", Task: jobs.NewSessionCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
