package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// TranscriptSegment is a single recognized word or phrase with time offsets
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// SegmentList stores the time-aligned segments as a JSON column
type SegmentList []TranscriptSegment

// Value implements driver.Valuer interface for SegmentList
func (s SegmentList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner interface for SegmentList
func (s *SegmentList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, s)
}

// Transcription represents the recognized text for an episode. One per
// episode; replaced wholesale on each successful transcription run.
type Transcription struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	EpisodeID    uint           `gorm:"uniqueIndex" json:"episode_id"`
	Language     string         `gorm:"size:16" json:"language"`
	Text         string         `gorm:"type:text" json:"text"`
	Segments     SegmentList    `gorm:"type:json" json:"segments"`
	Provider     string         `gorm:"size:32" json:"provider"`
	AudioSeconds int            `json:"audio_seconds"`
	CostUSD      float64        `json:"cost_usd"`
	SRTKey       string         `gorm:"size:512" json:"srt_key"`
	VTTKey       string         `gorm:"size:512" json:"vtt_key"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Transcription
func (Transcription) TableName() string {
	return "transcriptions"
}

// BillingRecord is an append-only ledger entry for one completed
// transcription run. Rows are never mutated or deleted by the pipeline.
type BillingRecord struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	EpisodeID    uint      `gorm:"index" json:"episode_id"`
	Provider     string    `gorm:"size:32" json:"provider"`
	AudioSeconds int       `json:"audio_seconds"`
	CostUSD      float64   `json:"cost_usd"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for BillingRecord
func (BillingRecord) TableName() string {
	return "billing_records"
}
