package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/castworks/processor-api/internal/models"
	apperrors "github.com/castworks/processor-api/pkg/errors"
)

// DefaultMaxRetries bounds retries for newly enqueued jobs.
const DefaultMaxRetries = 5

type service struct {
	repo          Repository
	minRetryDelay time.Duration
}

// NewService creates a job queue service. minRetryDelay is the base of
// the exponential backoff applied between retries of a failed job.
func NewService(repo Repository, minRetryDelay time.Duration) Service {
	return &service{
		repo:          repo,
		minRetryDelay: minRetryDelay,
	}
}

func (s *service) EnqueueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload) (*models.Job, error) {
	job := &models.Job{
		Type:       jobType,
		Status:     models.JobStatusPending,
		Payload:    payload,
		MaxRetries: DefaultMaxRetries,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	log.Printf("[DEBUG] Enqueued %s job ID %d", jobType, job.ID)

	return job, nil
}

func (s *service) EnqueueUniqueJob(ctx context.Context, jobType models.JobType, payload models.JobPayload, uniqueKey string) (*models.Job, error) {
	uniqueValue, ok := payload[uniqueKey]
	if !ok {
		return nil, fmt.Errorf("unique key %s not found in payload", uniqueKey)
	}

	existing, err := s.repo.GetJobByTypeAndPayload(ctx, jobType, uniqueKey, fmt.Sprintf("%v", uniqueValue))
	if err == nil && existing != nil && !existing.IsTerminal() {
		log.Printf("[DEBUG] Job already queued for %s with %s=%v (ID: %d, status: %s)",
			jobType, uniqueKey, uniqueValue, existing.ID, existing.Status)
		return existing, nil
	}

	return s.EnqueueJob(ctx, jobType, payload)
}

func (s *service) GetJob(ctx context.Context, jobID uint) (*models.Job, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting job: %w", err)
	}
	return job, nil
}

func (s *service) ClaimNextJob(ctx context.Context, workerID string, jobTypes []models.JobType) (*models.Job, error) {
	job, err := s.repo.ClaimNextJob(ctx, workerID, jobTypes, s.minRetryDelay)
	if err != nil {
		if errors.Is(err, ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	log.Printf("[DEBUG] Worker %s claimed %s job ID %d", workerID, job.Type, job.ID)

	return job, nil
}

func (s *service) CompleteJob(ctx context.Context, jobID uint) error {
	if err := s.repo.CompleteJob(ctx, jobID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("completing job: %w", err)
	}

	log.Printf("[DEBUG] Job %d completed successfully", jobID)

	return nil
}

// FailJob records a job failure. The cause error decides retry handling:
// codes that cannot succeed on retry (bad configuration, quota rejection,
// missing master) put the job straight into permanently_failed.
func (s *service) FailJob(ctx context.Context, jobID uint, cause error) error {
	code := apperrors.GetCode(cause)
	permanent := false

	var appErr *apperrors.AppError
	if errors.As(cause, &appErr) {
		permanent = !appErr.Retryable()
	}

	if err := s.repo.FailJob(ctx, jobID, string(code), cause.Error(), permanent); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("failing job: %w", err)
	}

	job, _ := s.repo.GetJob(ctx, jobID)
	if job != nil && job.IsRetryable() {
		log.Printf("[ERROR] Job %d failed with %s (retry %d/%d): %v", jobID, code, job.RetryCount, job.MaxRetries, cause)
	} else {
		log.Printf("[ERROR] Job %d failed permanently with %s: %v", jobID, code, cause)
	}

	return nil
}

func (s *service) ReleaseJob(ctx context.Context, jobID uint) error {
	if err := s.repo.ReleaseJob(ctx, jobID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("releasing job: %w", err)
	}

	log.Printf("[DEBUG] Job %d released back to pending", jobID)

	return nil
}

func (s *service) CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	deleted, err := s.repo.DeleteOldJobs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up old jobs: %w", err)
	}

	if deleted > 0 {
		log.Printf("[DEBUG] Deleted %d old jobs (older than %d days)", deleted, retentionDays)
	}

	return deleted, nil
}
