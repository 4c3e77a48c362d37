package workers

import (
	"context"

	"github.com/castworks/processor-api/internal/models"
	apperrors "github.com/castworks/processor-api/pkg/errors"
)

// PipelineRunner runs the full processing pipeline for one master audio.
// userID of zero means no charging user; transcription then skips the
// quota check.
type PipelineRunner interface {
	Run(ctx context.Context, audioID uint, userID uint) error
}

// AudioProcessor handles audio_processing jobs by delegating to the
// pipeline orchestrator.
type AudioProcessor struct {
	pipeline PipelineRunner
}

// NewAudioProcessor creates a processor bound to a pipeline.
func NewAudioProcessor(pipeline PipelineRunner) *AudioProcessor {
	return &AudioProcessor{pipeline: pipeline}
}

// CanProcess returns true for audio_processing jobs
func (ap *AudioProcessor) CanProcess(jobType models.JobType) bool {
	return jobType == models.JobTypeAudioProcessing
}

// ProcessJob extracts the payload and runs the pipeline.
func (ap *AudioProcessor) ProcessJob(ctx context.Context, job *models.Job) error {
	audioID, ok := job.GetPayloadUint("audio_id")
	if !ok {
		// A payload without the key can never succeed; fail permanently.
		return apperrors.Newf(apperrors.ErrCodeConfigInvalid, "job %d payload missing audio_id", job.ID)
	}

	userID, _ := job.GetPayloadUint("user_id")

	return ap.pipeline.Run(ctx, audioID, userID)
}
