package models

import (
	"time"

	"gorm.io/gorm"
)

// RenditionKind identifies what a stored audio row is: the uploaded master,
// one of the bitrate variants, the HLS package entry point, or the preview
// clip.
type RenditionKind string

const (
	KindMaster  RenditionKind = "master"
	KindLow     RenditionKind = "low"
	KindMedium  RenditionKind = "medium"
	KindHigh    RenditionKind = "high"
	KindPackage RenditionKind = "package"
	KindPreview RenditionKind = "preview"
)

// VariantKinds is the quality ladder from lowest to highest target bitrate.
var VariantKinds = []RenditionKind{KindLow, KindMedium, KindHigh}

// Audio represents one stored audio asset for an episode, master or derived.
// The (episode_id, kind) pair is unique, which both guarantees a single
// master per episode and makes rendition writes idempotent upserts.
type Audio struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	EpisodeID   uint           `gorm:"uniqueIndex:idx_audios_episode_kind;index" json:"episode_id"`
	Kind        RenditionKind  `gorm:"uniqueIndex:idx_audios_episode_kind;size:16" json:"kind"`
	Name        string         `gorm:"size:200" json:"name"`
	Codec       string         `gorm:"size:32" json:"codec"`
	SampleRate  int            `json:"sample_rate"`
	BitrateKbps int            `json:"bitrate_kbps"`
	Duration    int            `json:"duration"` // seconds
	SizeBytes   int64          `json:"size_bytes"`
	StorageKey  string         `gorm:"size:512" json:"storage_key"`
	Prefix      string         `gorm:"size:512" json:"prefix"` // package kind only: key prefix covering all segments
	Processed   bool           `json:"processed"`              // master kind only: terminal pipeline success marker
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Audio
func (Audio) TableName() string {
	return "audios"
}

// IsMaster reports whether this row is the episode's master recording
func (a *Audio) IsMaster() bool {
	return a.Kind == KindMaster
}
