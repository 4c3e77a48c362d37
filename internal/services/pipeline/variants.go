package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/audio"
	"github.com/castworks/processor-api/pkg/config"
	apperrors "github.com/castworks/processor-api/pkg/errors"
	"github.com/castworks/processor-api/pkg/ffmpeg"
)

// runVariants produces the monotonic prefix of the quality ladder the
// master's measured bitrate can support. A master below the medium
// threshold gets only low; one below low gets nothing. Any single tier
// failure aborts the stage: a partial ladder gives listeners an
// unpredictable experience, so it is treated as worse than none.
func (o *Orchestrator) runVariants(ctx context.Context, ws *workspace, episodeID uint, masterPath string, meta *ffmpeg.AudioMetadata) error {
	for _, tier := range models.VariantKinds {
		tierCfg, ok := o.cfg.Tiers[string(tier)]
		if !ok {
			return apperrors.Newf(apperrors.ErrCodeConfigInvalid, "tier %s not configured", tier)
		}
		if tierCfg.BitrateKbps > meta.BitrateKbps {
			log.Printf("[INFO] Episode %d: master bitrate %d kbps cannot support %s tier, stopping ladder",
				episodeID, meta.BitrateKbps, tier)
			break
		}

		if err := o.produceVariant(ctx, ws, episodeID, masterPath, tier, tierCfg, meta); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) produceVariant(ctx context.Context, ws *workspace, episodeID uint, masterPath string, tier models.RenditionKind, tierCfg config.TierConfig, meta *ffmpeg.AudioMetadata) error {
	preset := ffmpeg.VariantPreset{
		BitrateKbps: tierCfg.BitrateKbps,
		SampleRate:  tierCfg.SampleRate,
		Channels:    tierCfg.Channels,
	}

	output := ws.path(fmt.Sprintf("%s.mp3", tier))
	if err := o.transcoder.TranscodeVariant(ctx, masterPath, output, preset); err != nil {
		return apperrors.ExternalError("ffmpeg", fmt.Errorf("transcoding %s variant: %w", tier, err))
	}

	key := fmt.Sprintf("episodes/%d/variants/%s.mp3", episodeID, tier)
	if err := o.replaceObject(ctx, key, output); err != nil {
		return err
	}

	_, err := o.repo.UpsertRendition(ctx, episodeID, tier, audio.RenditionFields{
		Name:        fmt.Sprintf("%s variant", tier),
		Codec:       "mp3",
		SampleRate:  tierCfg.SampleRate,
		BitrateKbps: tierCfg.BitrateKbps,
		Duration:    int(meta.Duration),
		SizeBytes:   fileSize(output),
		StorageKey:  key,
	})
	if err != nil {
		return apperrors.DatabaseError("upserting variant rendition", err)
	}

	return nil
}
