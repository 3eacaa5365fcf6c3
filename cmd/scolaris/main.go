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

	"github.com/scolaris/scolaris/internal/app"
	"github.com/scolaris/scolaris/internal/auth"
	"github.com/scolaris/scolaris/internal/chat"
	"github.com/scolaris/scolaris/internal/observability"
	"github.com/scolaris/scolaris/internal/platform/cache"
	"github.com/scolaris/scolaris/internal/platform/db"
	"github.com/scolaris/scolaris/internal/roles"
	"github.com/scolaris/scolaris/internal/school"
	"github.com/scolaris/scolaris/internal/shared"
	"github.com/scolaris/scolaris/internal/students"
	"github.com/scolaris/scolaris/internal/timetable"
	"github.com/scolaris/scolaris/internal/users"
	"github.com/scolaris/scolaris/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, "scolaris_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger)
	usersHandler := users.NewHandler(logger, usersService)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, auditLogger)
	rolesHandler := roles.NewHandler(logger, rolesService)

	schoolRepo := school.NewRepository(dbpool)
	schoolService := school.NewService(schoolRepo, auditLogger)
	schoolHandler := school.NewHandler(logger, schoolService)

	timetableRepo := timetable.NewRepository(dbpool)
	timetableService := timetable.NewService(timetableRepo, auditLogger)
	timetableHandler := timetable.NewHandler(logger, timetableService, idempotencyStore)

	studentsRepo := students.NewRepository(dbpool)
	studentsService := students.NewService(studentsRepo, auditLogger)
	studentsHandler := students.NewHandler(logger, studentsService)

	chatRepo := chat.NewRepository(dbpool)
	chatService := chat.NewService(chatRepo, school.NewFactsRepository(dbpool), chat.NewUnreadCounter(redisClient), auditLogger)
	chatHandler := chat.NewHandler(logger, chatService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(jobClient, inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		RolesHandler:     rolesHandler,
		SchoolHandler:    schoolHandler,
		TimetableHandler: timetableHandler,
		StudentsHandler:  studentsHandler,
		ChatHandler:      chatHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
