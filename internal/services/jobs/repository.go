package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castworks/processor-api/internal/models"
	"gorm.io/gorm"
)

// Repository errors
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrNoJobsAvailable = errors.New("no jobs available")
)

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new job repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{
		db: db,
	}
}

// CreateJob creates a new job
func (r *repository) CreateJob(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetJob retrieves a job by ID
func (r *repository) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).First(&job, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return &job, nil
}

// GetJobByTypeAndPayload finds a job by type and a specific payload value
func (r *repository) GetJobByTypeAndPayload(ctx context.Context, jobType models.JobType, key, value string) (*models.Job, error) {
	var job models.Job

	// JSON extract works for SQLite. The cast keeps numeric payload
	// values comparable against the text bind.
	err := r.db.WithContext(ctx).
		Where("type = ?", jobType).
		Where("CAST(json_extract(payload, ?) AS TEXT) = ?", "$."+key, value).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("getting job by type and payload: %w", err)
	}

	return &job, nil
}

// ClaimNextJob atomically claims the next runnable job for a worker.
// Failed jobs are only eligible once their exponential backoff window
// has elapsed.
func (r *repository) ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType, minRetryDelay time.Duration) (*models.Job, error) {
	var claimed models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.Job
		// SQLite serializes writers, so the transaction alone makes the
		// select-then-update claim atomic.
		query := tx.
			Where("(status = ? OR (status = ? AND retry_count < max_retries))",
				models.JobStatusPending, models.JobStatusFailed)

		if len(jobTypes) > 0 {
			query = query.Where("type IN ?", jobTypes)
		}

		err := query.Order("created_at ASC").Limit(20).Find(&candidates).Error
		if err != nil {
			return fmt.Errorf("finding job to claim: %w", err)
		}

		var job *models.Job
		for i := range candidates {
			c := &candidates[i]
			if c.Status == models.JobStatusPending || c.CanRetryNow(minRetryDelay) {
				job = c
				break
			}
		}
		if job == nil {
			return ErrNoJobsAvailable
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":     models.JobStatusProcessing,
			"worker_id":  workerID,
			"started_at": &now,
		}
		if job.Status == models.JobStatusFailed {
			updates["retry_count"] = job.RetryCount + 1
			job.RetryCount++
		}

		if err := tx.Model(job).Updates(updates).Error; err != nil {
			return fmt.Errorf("updating claimed job: %w", err)
		}

		job.Status = models.JobStatusProcessing
		job.WorkerID = workerID
		job.StartedAt = &now
		claimed = *job

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &claimed, nil
}

// CompleteJob marks a job as completed
func (r *repository) CompleteJob(ctx context.Context, jobID uint) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"completed_at": &now,
			"error":        "",
			"error_code":   "",
		})

	if res.Error != nil {
		return fmt.Errorf("completing job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}

	return nil
}

// FailJob records a failure. When permanent is true, or when the retry
// budget is exhausted, the job goes to permanently_failed.
func (r *repository) FailJob(ctx context.Context, jobID uint, errorCode, errorMsg string, permanent bool) error {
	now := time.Now()

	var job models.Job
	if err := r.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("finding job to fail: %w", err)
	}

	status := models.JobStatusFailed
	if permanent || job.RetryCount >= job.MaxRetries {
		status = models.JobStatusPermanentlyFailed
	}

	updates := map[string]interface{}{
		"status":         status,
		"error":          errorMsg,
		"error_code":     errorCode,
		"last_failed_at": &now,
		"worker_id":      "",
	}
	if status == models.JobStatusPermanentlyFailed {
		updates["completed_at"] = &now
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ?", jobID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failing job: %w", err)
	}

	return nil
}

// ReleaseJob releases a processing job back to pending status
func (r *repository) ReleaseJob(ctx context.Context, jobID uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.JobStatusPending,
			"worker_id":  "",
			"started_at": nil,
		})

	if res.Error != nil {
		return fmt.Errorf("releasing job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}

	return nil
}

// DeleteOldJobs deletes terminal jobs older than the specified time
func (r *repository) DeleteOldJobs(ctx context.Context, olderThan time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", olderThan).
		Where("status IN ?", []models.JobStatus{
			models.JobStatusCompleted,
			models.JobStatusPermanentlyFailed,
		}).
		Delete(&models.Job{})

	if res.Error != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", res.Error)
	}

	return res.RowsAffected, nil
}
