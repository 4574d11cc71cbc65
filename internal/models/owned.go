package models

import "time"

// Pair is a chat-owned record used by the text-generation engine.
// Only its ownership matters here: destroying a chat destroys its pairs.
type Pair struct {
	ID        int64 `gorm:"primaryKey"`
	ChatID    int64 `gorm:"index"`
	CreatedAt time.Time
}

// Single is a chat-owned record used by the text-generation engine.
type Single struct {
	ID        int64 `gorm:"primaryKey"`
	ChatID    int64 `gorm:"index"`
	CreatedAt time.Time
}

// Winner is a chat-owned winner-of-the-day record.
type Winner struct {
	ID        int64 `gorm:"primaryKey"`
	ChatID    int64 `gorm:"index:idx_winners_chat_won_on"`
	UserID    int64
	WonOn     time.Time `gorm:"type:date;index:idx_winners_chat_won_on"`
	CreatedAt time.Time
}
