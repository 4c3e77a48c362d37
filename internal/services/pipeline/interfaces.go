package pipeline

import (
	"context"

	"github.com/castworks/processor-api/pkg/ffmpeg"
)

// Transcoder is the media tool surface the pipeline stages need. It is
// satisfied by *ffmpeg.FFmpeg.
type Transcoder interface {
	GetMetadata(ctx context.Context, filePath string) (*ffmpeg.AudioMetadata, error)
	TranscodeVariant(ctx context.Context, input, output string, preset ffmpeg.VariantPreset) error
	SegmentHLS(ctx context.Context, input, outDir string, preset ffmpeg.VariantPreset, segmentSeconds int) error
	ExtractClip(ctx context.Context, input, output string, startSeconds, windowSeconds float64, preset ffmpeg.VariantPreset) error
}

// Transcriber runs the transcription stage against a local master file.
// A userID of zero means no charging user.
type Transcriber interface {
	Transcribe(ctx context.Context, episodeID uint, masterPath string, workDir string, userID uint) error
}
