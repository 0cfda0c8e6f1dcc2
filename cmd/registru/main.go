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
	"github.com/redis/go-redis/v9"

	"github.com/primaria-digitala/registru/internal/app"
	"github.com/primaria-digitala/registru/internal/audit"
	audithttp "github.com/primaria-digitala/registru/internal/audit/http"
	"github.com/primaria-digitala/registru/internal/auth"
	"github.com/primaria-digitala/registru/internal/departments"
	"github.com/primaria-digitala/registru/internal/observability"
	"github.com/primaria-digitala/registru/internal/platform/cache"
	"github.com/primaria-digitala/registru/internal/platform/db"
	"github.com/primaria-digitala/registru/internal/rbac"
	"github.com/primaria-digitala/registru/internal/registers"
	"github.com/primaria-digitala/registru/internal/users"
	"github.com/primaria-digitala/registru/jobs"
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
		// Permission cache and job inspection degrade without Redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditStore := audit.NewPGStore(dbpool)
	auditor := audit.NewDispatcher(auditStore, logger, cfg.AuditBufferSize)
	auditor.OnDrop(metrics.IncAuditDropped)
	defer auditor.Close()

	codec, err := auth.NewTokenCodec(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}
	authorizer := auth.NewAuthorizer(codec, logger, cfg.IsProduction())

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, codec, auditor, logger, cfg.LoginTimeout)
	authHandler := auth.NewHandler(logger, authService, codec, auditor, metrics, cfg.IsProduction())

	rbacMiddleware := rbac.Middleware{Logger: logger, Auditor: auditor}
	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, redisClient, 5*time.Minute, auditor, logger)
	permissionsHandler := rbac.NewHandler(logger, rbacService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditor, logger, cfg.BcryptCost)
	usersHandler := users.NewHandler(logger, usersService)

	departmentsRepo := departments.NewRepository(dbpool)
	departmentsHandler := departments.NewHandler(logger, departmentsRepo, auditor)

	registersRepo := registers.NewRepository(dbpool)
	registersService := registers.NewService(registersRepo, auditor, logger, cfg.StorageRoot)
	registersHandler := registers.NewHandler(logger, registersService, rbacMiddleware)

	auditService := audit.NewService(auditStore)
	auditHandler := audithttp.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Authorizer:         authorizer,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RegistersHandler:   registersHandler,
		DepartmentsHandler: departmentsHandler,
		AuditHandler:       auditHandler,
		PermissionsHandler: permissionsHandler,
		JobsHandler:        jobsHandler,
		RBACMiddleware:     rbacMiddleware,
		Auditor:            auditor,
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
