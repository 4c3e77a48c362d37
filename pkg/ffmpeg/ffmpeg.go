package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// FFmpeg wraps ffmpeg and ffprobe functionality
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
}

// New creates a new FFmpeg instance
func New(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
	}
}

// ValidateBinaries checks if ffmpeg and ffprobe are available
func (f *FFmpeg) ValidateBinaries() error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFmpegNotFound, f.ffmpegPath)
	}

	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return fmt.Errorf("%w: %s", ErrFFprobeNotFound, f.ffprobePath)
	}

	return nil
}

// TranscodeVariant transcodes the input into a single mp3 rendition at the
// given bitrate/sample-rate profile.
func (f *FFmpeg) TranscodeVariant(ctx context.Context, input, output string, preset VariantPreset) error {
	args := []string{
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", preset.BitrateKbps),
		"-ar", strconv.Itoa(preset.SampleRate),
		"-ac", strconv.Itoa(preset.Channels),
		"-y",
		output,
	}
	return f.run(ctx, "variant_transcode", input, args)
}

// SegmentHLS produces an audio-only HLS package (playlist + MPEG-TS segments)
// in outDir. The playlist is written as index.m3u8; segments are numbered
// under the same directory so the whole tree can be uploaded as-is.
func (f *FFmpeg) SegmentHLS(ctx context.Context, input, outDir string, preset VariantPreset, segmentSeconds int) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return NewProcessingError("hls_output_dir", input, err, "")
	}
	args := []string{
		"-i", input,
		"-vn",
		"-acodec", "aac",
		"-b:a", fmt.Sprintf("%dk", preset.BitrateKbps),
		"-ar", strconv.Itoa(preset.SampleRate),
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outDir, "segment_%05d.ts"),
		"-y",
		filepath.Join(outDir, "index.m3u8"),
	}
	return f.run(ctx, "hls_segmenting", input, args)
}

// ExtractClip extracts a window of the input starting at startSeconds and
// lasting windowSeconds, encoded as mp3 at the given profile.
func (f *FFmpeg) ExtractClip(ctx context.Context, input, output string, startSeconds, windowSeconds float64, preset VariantPreset) error {
	args := []string{
		"-ss", strconv.FormatFloat(startSeconds, 'f', 3, 64),
		"-t", strconv.FormatFloat(windowSeconds, 'f', 3, 64),
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", preset.BitrateKbps),
		"-ar", strconv.Itoa(preset.SampleRate),
		"-ac", strconv.Itoa(preset.Channels),
		"-y",
		output,
	}
	return f.run(ctx, "clip_extraction", input, args)
}

// ConvertForRecognition converts the input to a mono 16-bit PCM wav at the
// given sample rate, the shape speech-to-text providers expect.
func (f *FFmpeg) ConvertForRecognition(ctx context.Context, input, output string, sampleRate int) error {
	args := []string{
		"-i", input,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "wav",
		"-y",
		output,
	}
	return f.run(ctx, "recognition_convert", input, args)
}

// run executes ffmpeg with the given arguments under the configured timeout.
func (f *FFmpeg) run(ctx context.Context, operation, input string, args []string) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return NewProcessingError(operation, input, err, stderr.String())
	}
	return nil
}
