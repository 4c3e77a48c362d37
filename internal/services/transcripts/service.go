// Package transcripts runs speech-to-text recognition for processed
// episodes: waveform conversion, provider dispatch, subtitle export,
// atomic persistence with billing, and optional chapter and summary
// derivation.
package transcripts

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/castworks/processor-api/internal/metrics"
	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/billing"
	"github.com/castworks/processor-api/internal/storage"
	"github.com/castworks/processor-api/pkg/config"
	apperrors "github.com/castworks/processor-api/pkg/errors"
	"github.com/castworks/processor-api/pkg/subtitle"
)

// Service orchestrates one transcription run per call. It satisfies the
// pipeline's Transcriber contract.
type Service struct {
	converter  AudioConverter
	providers  map[string]Provider
	repo       Repository
	store      storage.ObjectStore
	billing    billing.Service
	summarizer Summarizer
	cfg        config.TranscriptionConfig
}

// NewService creates a transcription orchestrator. providers maps each
// registered provider name to its implementation.
func NewService(converter AudioConverter, providers map[string]Provider, repo Repository, store storage.ObjectStore, billingSvc billing.Service, summarizer Summarizer, cfg config.TranscriptionConfig) *Service {
	return &Service{
		converter:  converter,
		providers:  providers,
		repo:       repo,
		store:      store,
		billing:    billingSvc,
		summarizer: summarizer,
		cfg:        cfg,
	}
}

// Transcribe runs the full transcription flow for one episode. userID of
// zero means no charging user, which skips the quota check.
func (s *Service) Transcribe(ctx context.Context, episodeID uint, masterPath, workDir string, userID uint) error {
	provider, ok := s.providers[s.cfg.Provider]
	if !ok {
		return apperrors.UnknownProvider(s.cfg.Provider)
	}

	wavPath := filepath.Join(workDir, "recognition.wav")
	if err := s.converter.ConvertForRecognition(ctx, masterPath, wavPath, s.cfg.SampleRate); err != nil {
		return apperrors.ExternalError("ffmpeg", fmt.Errorf("converting for recognition: %w", err))
	}

	meta, err := s.converter.GetMetadata(ctx, wavPath)
	if err != nil {
		return apperrors.ExternalError("ffprobe", fmt.Errorf("probing recognition waveform: %w", err))
	}
	durationSeconds := int(meta.Duration)
	metrics.AudioDurationSeconds.Observe(meta.Duration)

	if userID != 0 {
		allowed, err := s.billing.Charge(ctx, userID, durationSeconds)
		if err != nil {
			return apperrors.DatabaseError("checking quota", err)
		}
		if !allowed {
			return apperrors.QuotaExceeded(userID, durationSeconds)
		}
	}

	metrics.TranscriptionsTotal.WithLabelValues(provider.Name()).Inc()
	start := time.Now()
	result, err := provider.Recognize(ctx, wavPath)
	if err != nil {
		metrics.TranscriptionsFailed.WithLabelValues(provider.Name(), "recognition").Inc()
		return apperrors.ExternalError(provider.Name(), err)
	}
	metrics.TranscriptionDuration.WithLabelValues(provider.Name()).Observe(time.Since(start).Seconds())

	srtKey, vttKey, err := s.exportSubtitles(ctx, episodeID, result.Segments)
	if err != nil {
		metrics.TranscriptionsFailed.WithLabelValues(provider.Name(), "subtitle_upload").Inc()
		return err
	}

	if err := s.persist(ctx, episodeID, provider.Name(), result, durationSeconds, srtKey, vttKey); err != nil {
		metrics.TranscriptionsFailed.WithLabelValues(provider.Name(), "persistence").Inc()
		return err
	}

	if s.cfg.Chapters {
		chapters := deriveChapters(result.Segments)
		if err := s.repo.ReplaceChapters(ctx, episodeID, chapters); err != nil {
			return apperrors.DatabaseError("replacing chapters", err)
		}
	}

	if s.cfg.Summary {
		s.deriveSummary(ctx, episodeID, result.Text)
	}

	log.Printf("[INFO] Episode %d transcribed via %s (%ds of audio, %d segments)",
		episodeID, provider.Name(), durationSeconds, len(result.Segments))

	return nil
}

// exportSubtitles uploads both subtitle formats. The pair is atomic at
// the storage level: if the second upload fails, the first is deleted so
// no half-pair is ever observable.
func (s *Service) exportSubtitles(ctx context.Context, episodeID uint, segments []subtitle.Segment) (string, string, error) {
	srtKey := fmt.Sprintf("transcripts/%d/%d.srt", episodeID, episodeID)
	vttKey := fmt.Sprintf("transcripts/%d/%d.vtt", episodeID, episodeID)

	srt := subtitle.ExportSRT(segments)
	vtt := subtitle.ExportVTT(segments)

	if err := s.store.Upload(ctx, srtKey, strings.NewReader(srt)); err != nil {
		return "", "", apperrors.ExternalError("storage", fmt.Errorf("uploading %s: %w", srtKey, err))
	}

	if err := s.store.Upload(ctx, vttKey, strings.NewReader(vtt)); err != nil {
		s.deleteSubtitles(ctx, srtKey, "")
		return "", "", apperrors.ExternalError("storage", fmt.Errorf("uploading %s: %w", vttKey, err))
	}

	return srtKey, vttKey, nil
}

// persist writes the transcription and billing record atomically; any
// failure rolls back the subtitle uploads made this attempt.
func (s *Service) persist(ctx context.Context, episodeID uint, providerName string, result *RecognitionResult, durationSeconds int, srtKey, vttKey string) error {
	cost := s.billing.EstimateCost(providerName, durationSeconds)

	segments := make(models.SegmentList, len(result.Segments))
	for i, seg := range result.Segments {
		segments[i] = models.TranscriptSegment{Text: seg.Text, Start: seg.Start, End: seg.End}
	}

	transcription := &models.Transcription{
		EpisodeID:    episodeID,
		Language:     result.Language,
		Text:         result.Text,
		Segments:     segments,
		Provider:     providerName,
		AudioSeconds: durationSeconds,
		CostUSD:      cost,
		SRTKey:       srtKey,
		VTTKey:       vttKey,
	}
	record := &models.BillingRecord{
		EpisodeID:    episodeID,
		Provider:     providerName,
		AudioSeconds: durationSeconds,
		CostUSD:      cost,
	}

	if err := s.repo.SaveWithBilling(ctx, transcription, record); err != nil {
		s.deleteSubtitles(ctx, srtKey, vttKey)
		return apperrors.DatabaseError("saving transcription", err)
	}

	return nil
}

// deleteSubtitles is best-effort compensation; failures are logged so
// they never mask the original error.
func (s *Service) deleteSubtitles(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			log.Printf("[WARN] Failed to delete subtitle %s during rollback: %v", key, err)
		}
	}
}

// deriveSummary is best-effort: a summarizer failure downgrades to an
// empty summary rather than failing the run.
func (s *Service) deriveSummary(ctx context.Context, episodeID uint, text string) {
	if s.summarizer == nil {
		return
	}

	maxChars := s.cfg.SummaryMaxChars
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars]
	}

	summaryText, model, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		log.Printf("[WARN] Summary for episode %d failed, storing empty summary: %v", episodeID, err)
		summaryText, model = "", ""
	}

	summary := &models.Summary{EpisodeID: episodeID, Text: summaryText, Model: model}
	if err := s.repo.UpsertSummary(ctx, summary); err != nil {
		log.Printf("[WARN] Storing summary for episode %d failed: %v", episodeID, err)
	}
}
