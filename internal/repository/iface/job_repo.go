package repository

import (
	"context"

	"loanguard/internal/domain"
)

// JobRepository defines operations for scheduled jobs
type JobRepository interface {
	// Create upserts the job so scheduling the same rule twice is harmless.
	Create(ctx context.Context, job *domain.ScheduledJob) error
	GetByID(ctx context.Context, jobID string) (*domain.ScheduledJob, error)
	ListActive(ctx context.Context) ([]*domain.ScheduledJob, error)
	// RecordDispatch moves next_run_at forward only if it still equals
	// expectedNextRunAt, returning ErrOptimisticLockFailed otherwise.
	RecordDispatch(ctx context.Context, jobID string, expectedNextRunAt, dispatchedAt, nextRunAt int64) error
	Delete(ctx context.Context, jobID string) error
}
