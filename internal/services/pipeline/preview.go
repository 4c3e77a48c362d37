package pipeline

import (
	"context"
	"fmt"

	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/audio"
	apperrors "github.com/castworks/processor-api/pkg/errors"
	"github.com/castworks/processor-api/pkg/ffmpeg"
)

// runPreview extracts the opening window of the master as a low-bitrate
// mono clip. The window always starts at zero; no silence or loudness
// detection is applied.
func (o *Orchestrator) runPreview(ctx context.Context, ws *workspace, episodeID uint, masterPath string, meta *ffmpeg.AudioMetadata) error {
	preset := ffmpeg.VariantPreset{
		BitrateKbps: o.cfg.PreviewBitrate,
		SampleRate:  o.cfg.PreviewRate,
		Channels:    1,
	}

	windowSeconds := o.cfg.PreviewSeconds
	if meta.Duration < windowSeconds {
		windowSeconds = meta.Duration
	}

	output := ws.path("preview.mp3")
	if err := o.transcoder.ExtractClip(ctx, masterPath, output, 0, windowSeconds, preset); err != nil {
		return apperrors.ExternalError("ffmpeg", fmt.Errorf("extracting preview clip: %w", err))
	}

	key := fmt.Sprintf("episodes/%d/preview/preview.mp3", episodeID)
	if err := o.replaceObject(ctx, key, output); err != nil {
		return err
	}

	_, err := o.repo.UpsertRendition(ctx, episodeID, models.KindPreview, audio.RenditionFields{
		Name:        "preview clip",
		Codec:       "mp3",
		SampleRate:  o.cfg.PreviewRate,
		BitrateKbps: o.cfg.PreviewBitrate,
		Duration:    int(windowSeconds),
		SizeBytes:   fileSize(output),
		StorageKey:  key,
	})
	if err != nil {
		return apperrors.DatabaseError("upserting preview rendition", err)
	}

	return nil
}
