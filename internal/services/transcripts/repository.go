package transcripts

import (
	"context"
	"errors"
	"fmt"

	"github.com/castworks/processor-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

// NewRepository creates a transcription repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// SaveWithBilling upserts the transcription by episode and appends the
// billing record in the same transaction. The billing ledger is
// append-only: a failed transaction writes neither row, and a retry
// writes exactly one new record.
func (r *repository) SaveWithBilling(ctx context.Context, transcription *models.Transcription, record *models.BillingRecord) error {
	if transcription == nil {
		return errors.New("transcription cannot be nil")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "episode_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"language", "text", "segments", "provider",
				"audio_seconds", "cost_usd", "srt_key", "vtt_key", "updated_at",
			}),
		}).Create(transcription).Error
		if err != nil {
			return fmt.Errorf("upserting transcription: %w", err)
		}

		if record != nil {
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("appending billing record: %w", err)
			}
		}

		return nil
	})
}

// GetByEpisodeID retrieves a transcription, nil when absent.
func (r *repository) GetByEpisodeID(ctx context.Context, episodeID uint) (*models.Transcription, error) {
	var transcription models.Transcription

	err := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).First(&transcription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &transcription, nil
}

// ReplaceChapters swaps the episode's chapter list atomically.
func (r *repository) ReplaceChapters(ctx context.Context, episodeID uint, chapters []models.Chapter) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("episode_id = ?", episodeID).Delete(&models.Chapter{}).Error; err != nil {
			return fmt.Errorf("deleting prior chapters: %w", err)
		}

		if len(chapters) == 0 {
			return nil
		}

		for i := range chapters {
			chapters[i].EpisodeID = episodeID
			chapters[i].Position = i
		}

		if err := tx.Create(&chapters).Error; err != nil {
			return fmt.Errorf("inserting chapters: %w", err)
		}
		return nil
	})
}

// GetChapters returns the episode's chapters ordered by position.
func (r *repository) GetChapters(ctx context.Context, episodeID uint) ([]models.Chapter, error) {
	var chapters []models.Chapter

	err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("position ASC").
		Find(&chapters).Error
	if err != nil {
		return nil, err
	}

	return chapters, nil
}

// UpsertSummary creates or replaces the episode's summary.
func (r *repository) UpsertSummary(ctx context.Context, summary *models.Summary) error {
	if summary == nil {
		return errors.New("summary cannot be nil")
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "episode_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "model", "updated_at"}),
	}).Create(summary).Error
}

// GetSummary returns the episode's summary, nil when absent.
func (r *repository) GetSummary(ctx context.Context, episodeID uint) (*models.Summary, error) {
	var summary models.Summary

	err := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &summary, nil
}
