package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shizoid/shizoid/internal/models"
)

// ParticipationsRepository handles participations table operations.
type ParticipationsRepository struct {
	db *gorm.DB
}

// NewParticipationsRepository creates a new participations repository.
func NewParticipationsRepository(db *gorm.DB) *ParticipationsRepository {
	return &ParticipationsRepository{db: db}
}

// Get returns the participation linking a chat and a participant, or (nil, nil).
func (r *ParticipationsRepository) Get(ctx context.Context, chatID, participantID int64) (*models.Participation, error) {
	var p models.Participation
	err := r.db.WithContext(ctx).
		Where("chat_id = ? AND participant_id = ?", chatID, participantID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get participation: %w", err)
	}
	return &p, nil
}

// Link records that the participant is (still) a member of the chat.
// A re-link of an existing pair clears any previous departure.
func (r *ParticipationsRepository) Link(ctx context.Context, chatID, participantID int64) error {
	p := models.Participation{ChatID: chatID, ParticipantID: participantID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "participant_id"}},
		DoUpdates: clause.Assignments(map[string]any{"left_at": nil, "updated_at": time.Now()}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("link participation: %w", err)
	}
	return nil
}

// MarkLeft records the participant's departure without deleting history.
// Unknown pairs are ignored.
func (r *ParticipationsRepository) MarkLeft(ctx context.Context, chatID, participantID int64) error {
	err := r.db.WithContext(ctx).
		Model(&models.Participation{}).
		Where("chat_id = ? AND participant_id = ?", chatID, participantID).
		Update("left_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("mark participation left: %w", err)
	}
	return nil
}
