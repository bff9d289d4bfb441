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

	"github.com/hibiken/asynq"

	"github.com/classboard/classboard/internal/access"
	"github.com/classboard/classboard/internal/app"
	"github.com/classboard/classboard/internal/audit"
	audithttp "github.com/classboard/classboard/internal/audit/http"
	"github.com/classboard/classboard/internal/auth"
	"github.com/classboard/classboard/internal/classes"
	"github.com/classboard/classboard/internal/content"
	jobmetrics "github.com/classboard/classboard/internal/jobs"
	"github.com/classboard/classboard/internal/moderation"
	"github.com/classboard/classboard/internal/observability"
	"github.com/classboard/classboard/internal/platform/cache"
	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/rbac"
	"github.com/classboard/classboard/internal/roles"
	"github.com/classboard/classboard/internal/shared"
	"github.com/classboard/classboard/internal/users"
	"github.com/classboard/classboard/jobs"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate || *migrateOnly {
		if err := db.Migrate(dbpool); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
		if *migrateOnly {
			return
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cache.Options{Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts, cfg.AuditQueue)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	auditStore := audit.NewStore(dbpool)
	auditSink := audit.MultiSink{
		audit.NewLogSink(logger),
		audit.NewQueueSink(jobClient, audit.NewStoreSink(auditStore, logger), logger),
	}

	classRepo := classes.NewRepository(dbpool)
	classDirectory := classes.NewDirectory(classRepo)

	gate := access.NewGate(
		access.WithPolicies(cfg.Policies()),
		access.WithClassDirectory(classDirectory),
		access.WithAuditSink(auditSink),
		access.WithObserver(metrics),
	)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	userRepo := users.NewRepository(dbpool)
	identityCache := users.NewCache(redisClient, cfg.IdentityCacheTTL)
	identityLoader := users.NewLoader(userRepo, identityCache, logger)
	userService := users.NewService(userRepo, identityLoader, classDirectory, gate)

	authService := auth.NewService(auth.NewRepository(dbpool), identityLoader,
		auth.WithHashCost(cfg.TokenHashCost),
		auth.WithGate(gate),
		auth.WithLogger(logger),
	)

	classService := classes.NewService(classRepo, gate)
	roleService := roles.NewService(roles.NewRepository(dbpool), classDirectory, identityLoader, gate)

	contentService := content.NewService(content.NewRepository(dbpool), gate,
		content.WithIdempotency(shared.NewIdempotencyStore(dbpool)),
		content.WithClassDirectory(classDirectory),
		content.WithLogger(logger),
	)
	moderationService := moderation.NewService(moderation.NewRepository(dbpool), contentService, gate)
	auditService := audit.NewService(auditStore)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     auth.Middleware{Service: authService, Logger: logger},
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService),
		UsersHandler:       users.NewHandler(logger, userService, rbacMiddleware),
		ClassesHandler:     classes.NewHandler(logger, classService, rbacMiddleware),
		RolesHandler:       roles.NewHandler(logger, roleService, rbacMiddleware),
		ContentHandler:     content.NewHandler(logger, contentService),
		ModerationHandler:  moderation.NewHandler(logger, moderationService, rbacMiddleware, cfg.ReportLimitPerMinute),
		AuditHandler:       audithttp.NewHandler(logger, auditService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger),
		JobHandler:         jobs.NewHandler(inspector, cfg.AuditQueue, logger, jobmetrics.NewMetrics(metrics.Registerer())),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
