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

// DefaultKeyRetention is how long idempotency keys are kept.
const DefaultKeyRetention = 24 * time.Hour

// KeyCleaner purges idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// CleanupJob drops idempotency keys past their retention.
type CleanupJob struct {
	Keys    KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Keys == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	payload := CleanupPayload{OlderThan: DefaultKeyRetention}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = DefaultKeyRetention
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyCleanup)
	removed, err := j.Keys.Cleanup(ctx, payload.OlderThan)
	metrics.AddItems(TaskIdempotencyCleanup, removed)
	if err != nil {
		jobLogger(j.Logger, TaskIdempotencyCleanup).Error("idempotency cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	jobLogger(j.Logger, TaskIdempotencyCleanup).Info("idempotency cleanup completed", slog.Int("removed", removed))
	return tracker.End(nil)
}
