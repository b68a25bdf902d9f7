package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile posts revenue missing for paid orders.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReconcilePayload carries scheduling metadata for a reconcile run.
type ReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Trigger      string    `json:"trigger"`
}

// CleanupPayload selects how old a key must be before it is purged.
type CleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewReconcileTask constructs a ledger reconcile task.
func NewReconcileTask(at time.Time, trigger string) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{ScheduledFor: at, Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault), asynq.Unique(time.Minute)), nil
}

// NewCleanupTask constructs an idempotency cleanup task.
func NewCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewTask builds a task by type name with default payloads, for operator
// triggers.
func NewTask(taskType string, now time.Time) (*asynq.Task, error) {
	switch taskType {
	case TaskLedgerReconcile:
		return NewReconcileTask(now, "manual")
	case TaskIdempotencyCleanup:
		return NewCleanupTask(DefaultKeyRetention)
	default:
		return nil, fmt.Errorf("jobs: unknown task type %q", taskType)
	}
}
