package audio

import (
	"context"

	"github.com/castworks/processor-api/internal/models"
)

// RenditionFields carries the mutable columns written when a rendition row is
// created or replaced.
type RenditionFields struct {
	Name        string
	Codec       string
	SampleRate  int
	BitrateKbps int
	Duration    int
	SizeBytes   int64
	StorageKey  string
	Prefix      string
}

// Repository defines persistence for master and derived audio rows
type Repository interface {
	// GetMaster retrieves a master audio row by ID. Returns (nil, nil) when
	// no such master exists; a deleted master is an expected race, not an
	// error.
	GetMaster(ctx context.Context, audioID uint) (*models.Audio, error)

	// CreateMaster stores a new master row for an episode
	CreateMaster(ctx context.Context, audio *models.Audio) error

	// UpdateMasterInfo writes probed technical metadata onto the master row
	UpdateMasterInfo(ctx context.Context, audioID uint, name, codec string, bitrateKbps, sampleRate, durationSeconds int) error

	// MarkProcessed flips the master's terminal success marker
	MarkProcessed(ctx context.Context, audioID uint) error

	// UpsertRendition creates or replaces the rendition row for
	// (episodeID, kind). Conflict resolution happens at the storage layer via
	// the unique (episode_id, kind) constraint, so concurrent invocations for
	// the same episode settle on last-writer-wins without locking.
	UpsertRendition(ctx context.Context, episodeID uint, kind models.RenditionKind, fields RenditionFields) (*models.Audio, error)

	// GetRendition retrieves the rendition for (episodeID, kind), or (nil, nil)
	GetRendition(ctx context.Context, episodeID uint, kind models.RenditionKind) (*models.Audio, error)

	// ListPackages returns every package-kind rendition, for cookie rotation
	ListPackages(ctx context.Context) ([]models.Audio, error)
}
