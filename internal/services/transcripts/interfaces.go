package transcripts

import (
	"context"

	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/pkg/ffmpeg"
	"github.com/castworks/processor-api/pkg/subtitle"
)

// RecognitionResult is the normalized output of a speech-to-text provider.
type RecognitionResult struct {
	Text     string
	Language string
	Segments []subtitle.Segment
}

// Provider converts a local waveform file into recognized text. One
// implementation calls the recognition API with the file directly; the
// other stages the file in a provider-side bucket first.
type Provider interface {
	Name() string
	Recognize(ctx context.Context, wavPath string) (*RecognitionResult, error)
}

// AudioConverter prepares the master for recognition and probes the
// result. Satisfied by *ffmpeg.FFmpeg.
type AudioConverter interface {
	ConvertForRecognition(ctx context.Context, input, output string, sampleRate int) error
	GetMetadata(ctx context.Context, filePath string) (*ffmpeg.AudioMetadata, error)
}

// Summarizer condenses transcript text. Failure is tolerated; the
// orchestrator downgrades to an empty summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (summary string, model string, err error)
}

// Repository persists transcription artifacts.
type Repository interface {
	// SaveWithBilling upserts the transcription and appends the billing
	// record inside one transaction. Both rows land or neither does.
	SaveWithBilling(ctx context.Context, transcription *models.Transcription, record *models.BillingRecord) error

	// GetByEpisodeID returns nil, nil when no transcription exists.
	GetByEpisodeID(ctx context.Context, episodeID uint) (*models.Transcription, error)

	// ReplaceChapters deletes all chapters for the episode and inserts
	// the new set.
	ReplaceChapters(ctx context.Context, episodeID uint, chapters []models.Chapter) error

	// GetChapters returns the episode's chapters ordered by position.
	GetChapters(ctx context.Context, episodeID uint) ([]models.Chapter, error)

	// UpsertSummary creates or replaces the episode's summary.
	UpsertSummary(ctx context.Context, summary *models.Summary) error

	// GetSummary returns nil, nil when no summary exists.
	GetSummary(ctx context.Context, episodeID uint) (*models.Summary, error)
}
