package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pentora/pentora/internal/jobs"
)

const (
	// TaskSessionSweep closes user sessions with no recent activity.
	TaskSessionSweep = "maintenance:session-sweep"
	// TaskRetentionPrune removes aged activity, audit and request log rows.
	TaskRetentionPrune = "maintenance:retention-prune"
)

// SessionSweepPayload controls how long a session may idle before it is
// closed.
type SessionSweepPayload struct {
	IdleAfter time.Duration `json:"idle_after"`
}

// NewSessionSweepTask constructs the sweep task.
func NewSessionSweepTask(idleAfter time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(SessionSweepPayload{IdleAfter: idleAfter})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, body, asynq.Queue(QueueDefault)), nil
}

// SessionCloser ends idle sessions. The activity repository satisfies it.
type SessionCloser interface {
	CloseIdleSessions(ctx context.Context, idleBefore time.Time) (int64, error)
}

// SessionSweepJob marks sessions inactive once they stop touching the API.
type SessionSweepJob struct {
	Sessions SessionCloser
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewSessionSweepJob initialises the sweep handler.
func NewSessionSweepJob(sessions SessionCloser, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionSweepJob {
	return &SessionSweepJob{
		Sessions: sessions,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sessions == nil {
		return errors.New("session sweep: handler not configured")
	}
	tracker := j.Metrics.Track("session_sweep")
	var payload SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.IdleAfter <= 0 {
		payload.IdleAfter = 30 * time.Minute
	}
	closed, err := j.Sessions.CloseIdleSessions(ctx, j.clock().Add(-payload.IdleAfter))
	if err != nil {
		return tracker.End(err)
	}
	if j.Logger != nil && closed > 0 {
		j.Logger.Info("closed idle sessions", slog.Int64("count", closed))
	}
	return tracker.End(nil)
}

// RetentionPayload carries per-table retention windows.
type RetentionPayload struct {
	ActivityRetention time.Duration `json:"activity_retention"`
	AuditRetention    time.Duration `json:"audit_retention"`
	APILogRetention   time.Duration `json:"api_log_retention"`
}

// NewRetentionPruneTask constructs the retention task.
func NewRetentionPruneTask(payload RetentionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionPrune, body, asynq.Queue(QueueDefault)), nil
}

// RetentionStores groups the prune surfaces of the three log tables.
type RetentionStores struct {
	Activity interface {
		DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
	Audit interface {
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
	APILogs interface {
		DeleteAPILogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
}

// RetentionJob trims the activity feed, the audit trail and the raw request
// log down to their configured windows.
type RetentionJob struct {
	Stores  RetentionStores
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewRetentionJob initialises the retention handler.
func NewRetentionJob(stores RetentionStores, logger *slog.Logger, metrics *jobmetrics.Metrics) *RetentionJob {
	return &RetentionJob{
		Stores:  stores,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the prune pass. Tables with a zero window are skipped.
func (j *RetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("retention: handler not configured")
	}
	tracker := j.Metrics.Track("retention_prune")
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	now := j.clock()

	var firstErr error
	record := func(table string, n int64, err error) {
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if j.Logger != nil {
				j.Logger.Error("retention prune failed", slog.String("table", table), slog.Any("error", err))
			}
			return
		}
		j.Metrics.AddPruned(table, n)
		if j.Logger != nil && n > 0 {
			j.Logger.Info("retention pruned rows", slog.String("table", table), slog.Int64("count", n))
		}
	}

	if j.Stores.Activity != nil && payload.ActivityRetention > 0 {
		n, err := j.Stores.Activity.DeleteEntriesBefore(ctx, now.Add(-payload.ActivityRetention))
		record("activity_logs", n, err)
	}
	if j.Stores.Audit != nil && payload.AuditRetention > 0 {
		n, err := j.Stores.Audit.DeleteBefore(ctx, now.Add(-payload.AuditRetention))
		record("audit_trail", n, err)
	}
	if j.Stores.APILogs != nil && payload.APILogRetention > 0 {
		n, err := j.Stores.APILogs.DeleteAPILogsBefore(ctx, now.Add(-payload.APILogRetention))
		record("api_logs", n, err)
	}
	return tracker.End(firstErr)
}
