package models

import "time"

// Chapter is one entry of an episode's ordered chapter list. The whole list
// is replaced each time chapters are regenerated; rows carry no identity
// across regenerations.
type Chapter struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	EpisodeID uint      `gorm:"index" json:"episode_id"`
	Position  int       `json:"position"`
	Title     string    `gorm:"size:200" json:"title"`
	StartTime float64   `json:"start_time"` // seconds from episode start
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for Chapter
func (Chapter) TableName() string {
	return "chapters"
}

// Summary is a short generated synopsis of an episode, upserted per episode.
type Summary struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	EpisodeID uint      `gorm:"uniqueIndex" json:"episode_id"`
	Text      string    `gorm:"type:text" json:"text"`
	Model     string    `gorm:"size:64" json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Summary
func (Summary) TableName() string {
	return "summaries"
}
