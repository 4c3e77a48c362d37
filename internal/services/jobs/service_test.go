package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castworks/processor-api/internal/models"
	apperrors "github.com/castworks/processor-api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (Service, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Job{}))
	return NewService(NewRepository(db), time.Minute), db
}

func TestEnqueueJob(t *testing.T) {
	svc, _ := setupService(t)

	job, err := svc.EnqueueJob(context.Background(), models.JobTypeAudioProcessing,
		models.JobPayload{"audio_id": 42})
	require.NoError(t, err)

	assert.NotZero(t, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)
}

func TestEnqueueUniqueJob_DeduplicatesActiveJob(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	payload := models.JobPayload{"audio_id": 42}

	first, err := svc.EnqueueUniqueJob(ctx, models.JobTypeAudioProcessing, payload, "audio_id")
	require.NoError(t, err)

	second, err := svc.EnqueueUniqueJob(ctx, models.JobTypeAudioProcessing, payload, "audio_id")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestEnqueueUniqueJob_NewJobAfterCompletion(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	payload := models.JobPayload{"audio_id": 42}

	first, err := svc.EnqueueUniqueJob(ctx, models.JobTypeAudioProcessing, payload, "audio_id")
	require.NoError(t, err)
	require.NoError(t, svc.CompleteJob(ctx, first.ID))

	second, err := svc.EnqueueUniqueJob(ctx, models.JobTypeAudioProcessing, payload, "audio_id")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestClaimNextJob(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	enqueued, err := svc.EnqueueJob(ctx, models.JobTypeAudioProcessing, models.JobPayload{"audio_id": 1})
	require.NoError(t, err)

	claimed, err := svc.ClaimNextJob(ctx, "worker-1", []models.JobType{models.JobTypeAudioProcessing})
	require.NoError(t, err)

	assert.Equal(t, enqueued.ID, claimed.ID)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.Equal(t, "worker-1", claimed.WorkerID)

	_, err = svc.ClaimNextJob(ctx, "worker-2", nil)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)
}

func TestFailJob_TransientErrorIsRetryable(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	job, err := svc.EnqueueJob(ctx, models.JobTypeAudioProcessing, models.JobPayload{"audio_id": 1})
	require.NoError(t, err)
	_, err = svc.ClaimNextJob(ctx, "worker-1", nil)
	require.NoError(t, err)

	cause := apperrors.ExternalError("ffmpeg", errors.New("exit status 1"))
	require.NoError(t, svc.FailJob(ctx, job.ID, cause))

	failed, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	assert.Equal(t, string(apperrors.ErrCodeTransientExternal), failed.ErrorCode)
	assert.True(t, failed.IsRetryable())
}

func TestFailJob_QuotaErrorIsPermanent(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	job, err := svc.EnqueueJob(ctx, models.JobTypeAudioProcessing, models.JobPayload{"audio_id": 1})
	require.NoError(t, err)
	_, err = svc.ClaimNextJob(ctx, "worker-1", nil)
	require.NoError(t, err)

	require.NoError(t, svc.FailJob(ctx, job.ID, apperrors.QuotaExceeded(9, 600)))

	failed, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPermanentlyFailed, failed.Status)
	assert.NotNil(t, failed.CompletedAt)
}

func TestFailJob_ExhaustedRetriesGoPermanent(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	job, err := svc.EnqueueJob(ctx, models.JobTypeAudioProcessing, models.JobPayload{"audio_id": 1})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":      models.JobStatusProcessing,
			"retry_count": DefaultMaxRetries,
		}).Error)

	cause := apperrors.ExternalError("storage", errors.New("connection reset"))
	require.NoError(t, svc.FailJob(ctx, job.ID, cause))

	failed, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPermanentlyFailed, failed.Status)
}

func TestClaimNextJob_RespectsBackoff(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	job, err := svc.EnqueueJob(ctx, models.JobTypeAudioProcessing, models.JobPayload{"audio_id": 1})
	require.NoError(t, err)

	// Recently failed job must wait out its backoff window.
	now := time.Now()
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":         models.JobStatusFailed,
			"retry_count":    1,
			"last_failed_at": &now,
		}).Error)

	_, err = svc.ClaimNextJob(ctx, "worker-1", nil)
	assert.ErrorIs(t, err, ErrNoJobsAvailable)

	// Once the backoff has elapsed, the job is claimable again.
	longAgo := now.Add(-time.Hour)
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", job.ID).
		Update("last_failed_at", &longAgo).Error)

	claimed, err := svc.ClaimNextJob(ctx, "worker-1", nil)
	require.NoError(t, err)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, 2, claimed.RetryCount)
}

func TestReleaseJob(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	job, err := svc.EnqueueJob(ctx, models.JobTypeAudioProcessing, models.JobPayload{"audio_id": 1})
	require.NoError(t, err)
	_, err = svc.ClaimNextJob(ctx, "worker-1", nil)
	require.NoError(t, err)

	require.NoError(t, svc.ReleaseJob(ctx, job.ID))

	released, err := svc.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, released.Status)
	assert.Empty(t, released.WorkerID)
}

func TestCleanupOldJobs(t *testing.T) {
	svc, db := setupService(t)
	ctx := context.Background()

	job, err := svc.EnqueueJob(ctx, models.JobTypeAudioProcessing, models.JobPayload{"audio_id": 1})
	require.NoError(t, err)
	require.NoError(t, svc.CompleteJob(ctx, job.ID))

	old := time.Now().AddDate(0, 0, -60)
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", job.ID).
		Update("created_at", old).Error)

	deleted, err := svc.CleanupOldJobs(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = svc.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
