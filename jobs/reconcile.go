package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-crm/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RevenueReconciler runs the paid-order revenue sweep.
type RevenueReconciler interface {
	ReconcileRevenue(ctx context.Context) (int, error)
}

// ReconcileJob heals revenue entries lost by partial failures.
type ReconcileJob struct {
	Reconciler RevenueReconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	Timeout    time.Duration
}

// NewReconcileJob wires dependencies for the reconcile handler.
func NewReconcileJob(reconciler RevenueReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Reconciler: reconciler, Logger: logger, Metrics: metrics, Timeout: 2 * time.Minute}
}

// Handle processes TaskLedgerReconcile tasks.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reconciler == nil {
		return errors.New("ledger reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLedgerReconcile)
	logger := jobLogger(j.Logger, TaskLedgerReconcile).With(slog.String("trigger", payload.Trigger))

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	posted, err := j.Reconciler.ReconcileRevenue(ctx)
	metrics.AddItems(TaskLedgerReconcile, posted)
	if err != nil {
		logger.Error("ledger reconcile failed", slog.Int("posted", posted), slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("ledger reconcile completed", slog.Int("posted", posted), slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
