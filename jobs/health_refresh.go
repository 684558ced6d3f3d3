package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pentora/pentora/internal/jobs"
)

const (
	// TaskHealthRefresh re-probes infrastructure and refreshes the endpoint
	// catalog behind the system health dashboard.
	TaskHealthRefresh = "health:refresh"
)

// NewHealthRefreshTask constructs the refresh task. It carries no payload.
func NewHealthRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskHealthRefresh, nil, asynq.Queue(QueueDefault))
}

// HealthService is the slice of the health service the job needs.
type HealthService interface {
	ProbeAll(ctx context.Context) error
	RefreshCatalog(ctx context.Context) error
}

// HealthRefreshJob keeps the system_status table warm so the dashboard stays
// accurate between operator visits.
type HealthRefreshJob struct {
	Service HealthService
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewHealthRefreshJob initialises the refresh handler.
func NewHealthRefreshJob(service HealthService, logger *slog.Logger, metrics *jobmetrics.Metrics) *HealthRefreshJob {
	return &HealthRefreshJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the refresh.
func (j *HealthRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("health refresh: handler not configured")
	}
	tracker := j.Metrics.Track("health_refresh")
	if err := j.Service.RefreshCatalog(ctx); err != nil {
		return tracker.End(err)
	}
	if err := j.Service.ProbeAll(ctx); err != nil {
		return tracker.End(err)
	}
	if j.Logger != nil {
		j.Logger.Debug("system health refreshed")
	}
	return tracker.End(nil)
}
