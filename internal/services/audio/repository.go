package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/castworks/processor-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// repository implements the Repository interface using GORM
type repository struct {
	db *gorm.DB
}

// NewRepository creates a new audio repository
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// GetMaster retrieves a master audio row by ID
func (r *repository) GetMaster(ctx context.Context, audioID uint) (*models.Audio, error) {
	var audio models.Audio

	result := r.db.WithContext(ctx).
		Where("id = ? AND kind = ?", audioID, models.KindMaster).
		First(&audio)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting master audio: %w", result.Error)
	}

	return &audio, nil
}

// CreateMaster stores a new master row for an episode
func (r *repository) CreateMaster(ctx context.Context, audio *models.Audio) error {
	if audio == nil {
		return errors.New("audio cannot be nil")
	}
	audio.Kind = models.KindMaster
	return r.db.WithContext(ctx).Create(audio).Error
}

// UpdateMasterInfo writes probed technical metadata onto the master row
func (r *repository) UpdateMasterInfo(ctx context.Context, audioID uint, name, codec string, bitrateKbps, sampleRate, durationSeconds int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Audio{}).
		Where("id = ? AND kind = ?", audioID, models.KindMaster).
		Updates(map[string]interface{}{
			"name":         name,
			"codec":        codec,
			"bitrate_kbps": bitrateKbps,
			"sample_rate":  sampleRate,
			"duration":     durationSeconds,
		})
	if result.Error != nil {
		return fmt.Errorf("updating master info: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkProcessed flips the master's terminal success marker
func (r *repository) MarkProcessed(ctx context.Context, audioID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Audio{}).
		Where("id = ? AND kind = ?", audioID, models.KindMaster).
		Update("processed", true)
	if result.Error != nil {
		return fmt.Errorf("marking master processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertRendition creates or replaces the rendition row for (episodeID, kind)
func (r *repository) UpsertRendition(ctx context.Context, episodeID uint, kind models.RenditionKind, fields RenditionFields) (*models.Audio, error) {
	if kind == models.KindMaster {
		return nil, errors.New("master rows are not upserted as renditions")
	}

	rendition := models.Audio{
		EpisodeID:   episodeID,
		Kind:        kind,
		Name:        fields.Name,
		Codec:       fields.Codec,
		SampleRate:  fields.SampleRate,
		BitrateKbps: fields.BitrateKbps,
		Duration:    fields.Duration,
		SizeBytes:   fields.SizeBytes,
		StorageKey:  fields.StorageKey,
		Prefix:      fields.Prefix,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "episode_id"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "codec", "sample_rate", "bitrate_kbps",
				"duration", "size_bytes", "storage_key", "prefix", "updated_at",
			}),
		}).
		Create(&rendition).Error
	if err != nil {
		return nil, fmt.Errorf("upserting rendition %s/%d: %w", kind, episodeID, err)
	}

	// Re-read so the caller sees the surviving row's ID after a conflict
	return r.GetRendition(ctx, episodeID, kind)
}

// GetRendition retrieves the rendition for (episodeID, kind)
func (r *repository) GetRendition(ctx context.Context, episodeID uint, kind models.RenditionKind) (*models.Audio, error) {
	var rendition models.Audio

	result := r.db.WithContext(ctx).
		Where("episode_id = ? AND kind = ?", episodeID, kind).
		First(&rendition)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting rendition: %w", result.Error)
	}

	return &rendition, nil
}

// ListPackages returns every package-kind rendition
func (r *repository) ListPackages(ctx context.Context) ([]models.Audio, error) {
	var packages []models.Audio
	err := r.db.WithContext(ctx).
		Where("kind = ?", models.KindPackage).
		Order("episode_id ASC").
		Find(&packages).Error
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	return packages, nil
}
