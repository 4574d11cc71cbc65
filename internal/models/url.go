package models

import "time"

// URL is a deduplicated record of a resource key already processed once.
type URL struct {
	ID        int64  `gorm:"primaryKey"`
	URL       string `gorm:"uniqueIndex;column:url"`
	CreatedAt time.Time
}

// TableName keeps the short table name instead of gorm's default pluralization.
func (URL) TableName() string {
	return "urls"
}
