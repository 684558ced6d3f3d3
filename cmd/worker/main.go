package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/app"
	"github.com/pentora/pentora/internal/audit"
	"github.com/pentora/pentora/internal/health"
	jobmetrics "github.com/pentora/pentora/internal/jobs"
	"github.com/pentora/pentora/internal/platform/db"
	"github.com/pentora/pentora/jobs"
	"github.com/pentora/pentora/report"
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

	metrics := jobmetrics.NewMetrics(nil)

	activityRepo := activity.NewRepository(pool)
	auditRepo := audit.NewRepository(pool)
	healthRepo := health.NewRepository(pool)
	reportClient := report.NewClient(cfg.GotenbergURL)

	healthService := health.NewService(healthRepo, []health.Probe{
		{Name: "database", Check: healthRepo.Ping},
		{Name: "gotenberg", Check: reportClient.Ping},
	})

	sweepJob := jobs.NewSessionSweepJob(activityRepo, logger, metrics)
	retentionJob := jobs.NewRetentionJob(jobs.RetentionStores{
		Activity: activityRepo,
		Audit:    auditRepo,
		APILogs:  healthRepo,
	}, logger, metrics)
	refreshJob := jobs.NewHealthRefreshJob(healthService, logger, metrics)
	mailer := &jobs.Mailer{Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom}

	sweepTask, err := jobs.NewSessionSweepTask(cfg.SessionIdleAfter)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	retentionTask, err := jobs.NewRetentionPruneTask(jobs.RetentionPayload{
		ActivityRetention: cfg.ActivityRetention,
		AuditRetention:    cfg.AuditRetention,
		APILogRetention:   cfg.APILogRetention,
	})
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskRetentionPrune, Handler: retentionJob.Handle},
			{Type: jobs.TaskHealthRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: mailer.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/10 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "45 2 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/5 * * * *", Task: jobs.NewHealthRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
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
