package jobs

import (
	"context"
	"time"

	"github.com/castworks/processor-api/internal/models"
)

// Service defines the queue operations exposed to the API layer and the
// worker pool.
type Service interface {
	// EnqueueJob creates a new pending job.
	EnqueueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload) (*models.Job, error)

	// EnqueueUniqueJob creates a job only if no non-terminal job of the
	// same type exists with the same payload value under uniqueKey.
	EnqueueUniqueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, uniqueKey string) (*models.Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID uint) (*models.Job, error)

	// ClaimNextJob atomically claims the next runnable job for a worker.
	ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error)

	// CompleteJob marks a job as completed.
	CompleteJob(ctx context.Context, jobID uint) error

	// FailJob records a failure. Errors classified as non-retryable move
	// the job straight to permanently_failed regardless of retry budget.
	FailJob(ctx context.Context, jobID uint, cause error) error

	// ReleaseJob puts a processing job back to pending, for shutdown.
	ReleaseJob(ctx context.Context, jobID uint) error

	// CleanupOldJobs removes terminal jobs older than the retention window.
	CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error)
}

// Repository defines job persistence.
type Repository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uint) (*models.Job, error)
	GetJobByTypeAndPayload(ctx context.Context, jobType models.JobType, key, value string) (*models.Job, error)
	ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType, minRetryDelay time.Duration) (*models.Job, error)
	CompleteJob(ctx context.Context, jobID uint) error
	FailJob(ctx context.Context, jobID uint, errorCode, errorMsg string, permanent bool) error
	ReleaseJob(ctx context.Context, jobID uint) error
	DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error)
}
