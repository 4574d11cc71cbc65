package models

import "time"

// Participation links a chat to a participant chat (a user). A participant
// who leaves keeps their row; LeftAt records the departure instead of
// deleting history.
type Participation struct {
	ID            int64 `gorm:"primaryKey"`
	ChatID        int64 `gorm:"uniqueIndex:idx_participations_chat_participant"`
	ParticipantID int64 `gorm:"uniqueIndex:idx_participations_chat_participant"`

	LeftAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Left reports whether the participant has left the chat.
func (p *Participation) Left() bool {
	return p.LeftAt != nil
}
