package driven

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// SchedulerStore persists background task bookkeeping.
type SchedulerStore interface {
	// GetTask retrieves a scheduled task by ID.
	// Returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns all scheduled tasks.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask persists a task's state, creating or updating by ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error
}
