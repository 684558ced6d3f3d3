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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pentora/pentora/internal/activity"
	"github.com/pentora/pentora/internal/app"
	"github.com/pentora/pentora/internal/assets"
	"github.com/pentora/pentora/internal/audit"
	"github.com/pentora/pentora/internal/auth"
	"github.com/pentora/pentora/internal/consultation"
	"github.com/pentora/pentora/internal/dashboard"
	"github.com/pentora/pentora/internal/health"
	"github.com/pentora/pentora/internal/observability"
	"github.com/pentora/pentora/internal/platform/cache"
	"github.com/pentora/pentora/internal/platform/db"
	"github.com/pentora/pentora/internal/reports"
	"github.com/pentora/pentora/internal/users"
	"github.com/pentora/pentora/jobs"
	"github.com/pentora/pentora/report"
)

// reportNotifier fans a finalized report out to its distribution list via
// the mail queue.
type reportNotifier struct {
	client *jobs.Client
	logger *slog.Logger
}

func (n reportNotifier) ReportFinalized(ctx context.Context, r *reports.Report) {
	if n.client == nil {
		return
	}
	for _, to := range r.DistributionEmails {
		payload := jobs.SendEmailPayload{
			To:      to,
			Subject: "Security report finalized: " + r.ReportTitle,
			Body:    "The report \"" + r.ReportTitle + "\" for " + r.AssetName + " has been finalized and is available for download.",
		}
		if _, err := n.client.EnqueueSendEmail(ctx, payload); err != nil {
			n.logger.Warn("enqueue report email", slog.String("to", to), slog.Any("error", err))
		}
	}
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	activityRepo := activity.NewRepository(pool)
	recorder := activity.NewRecorder(logger, activityRepo)

	tokenStore := auth.NewTokenStore(redisClient, cfg.SessionTTL)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokenStore, recorder)
	authHandler := auth.NewHandler(logger, authService, cfg.SessionTTL, cfg.IsProduction())

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, recorder, authService)
	usersHandler := users.NewHandler(logger, usersService)

	activityService := activity.NewService(activityRepo, usersService)
	activityHandler := activity.NewHandler(logger, activityService)

	assetsRepo := assets.NewRepository(pool)
	assetsService := assets.NewService(assetsRepo, recorder)
	assetsHandler := assets.NewHandler(logger, assetsService, usersService)

	reportClient := report.NewClient(cfg.GotenbergURL)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, recorder, reportClient)
	reportsService.SetNotifier(reportNotifier{client: jobsClient, logger: logger})
	reportsHandler := reports.NewHandler(logger, reportsService)

	consultationRepo := consultation.NewRepository(pool)
	consultationHandler := consultation.NewHandler(logger, consultationRepo)

	auditRepo := audit.NewRepository(pool)
	auditRecorder := audit.NewRecorder(logger, auditRepo)
	auditService := audit.NewService(auditRepo, usersService)
	auditHandler := audit.NewHandler(logger, auditService)

	healthRepo := health.NewRepository(pool)
	healthService := health.NewService(healthRepo, []health.Probe{
		{Name: "database", Check: healthRepo.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		{Name: "gotenberg", Check: reportClient.Ping},
	})
	healthHandler := health.NewHandler(logger, healthService)

	if err := healthService.RefreshCatalog(ctx); err != nil {
		logger.Warn("refresh health catalog", slog.Any("error", err))
	}

	dashboardRepo := dashboard.NewRepository(pool)
	dashboardService := dashboard.NewService(dashboardRepo, usersService)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "pentora_monitored_endpoints_unhealthy",
		Help: "Unhealthy component count from the latest system health pass.",
	}, healthService.UnhealthyCount))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AuthService:         authService,
		AuthHandler:         authHandler,
		UsersHandler:        usersHandler,
		ActivityHandler:     activityHandler,
		AssetsHandler:       assetsHandler,
		ReportsHandler:      reportsHandler,
		ConsultationHandler: consultationHandler,
		AuditHandler:        auditHandler,
		DashboardHandler:    dashboardHandler,
		HealthHandler:       healthHandler,
		JobsHandler:         jobsHandler,
		AuditRecorder:       auditRecorder,
		HealthStore:         healthRepo,
		Metrics:             metrics,
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
