package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classboard/classboard/internal/app"
	"github.com/classboard/classboard/internal/audit"
	jobmetrics "github.com/classboard/classboard/internal/jobs"
	"github.com/classboard/classboard/internal/platform/db"
	"github.com/classboard/classboard/internal/shared"
	"github.com/classboard/classboard/jobs"
)

const (
	purgeCron   = "0 3 * * *"
	cleanupCron = "30 3 * * *"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, AppName: "classboard-worker"})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	auditJob := jobs.NewAuditJob(audit.NewStore(pool), logger, metrics)
	idempotencyJob := jobs.NewIdempotencyJob(shared.NewIdempotencyStore(pool), logger, metrics)

	cron, err := schedule(cfg)
	if err != nil {
		return err
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Queue:       cfg.AuditQueue,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers:    append(auditJob.Handlers(), jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: idempotencyJob.Handle}),
		Cron:        cron,
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	if cfg.WorkerMetricsAddr != "" {
		srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("worker metrics listening", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return worker.Run(ctx)
}

// schedule builds the nightly retention tasks on the audit queue.
func schedule(cfg *app.Config) ([]jobs.CronRegistration, error) {
	purge, err := jobs.NewAuditPurgeTask(jobs.AuditPurgePayload{RetentionDays: cfg.AuditRetentionDays})
	if err != nil {
		return nil, fmt.Errorf("build purge task: %w", err)
	}
	cleanup, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{})
	if err != nil {
		return nil, fmt.Errorf("build cleanup task: %w", err)
	}
	opts := []asynq.Option{asynq.MaxRetry(3), asynq.Queue(cfg.AuditQueue)}
	return []jobs.CronRegistration{
		{Spec: purgeCron, Task: purge, Options: opts},
		{Spec: cleanupCron, Task: cleanup, Options: opts},
	}, nil
}
