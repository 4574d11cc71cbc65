// Package repository provides data access for the relational store.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/shizoid/shizoid/internal/models"
)

// ChatsRepository handles chats table operations.
type ChatsRepository struct {
	db *gorm.DB
}

// NewChatsRepository creates a new chats repository.
func NewChatsRepository(db *gorm.DB) *ChatsRepository {
	return &ChatsRepository{db: db}
}

// GetByID returns a chat by internal id, or (nil, nil) when absent.
func (r *ChatsRepository) GetByID(ctx context.Context, id int64) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).First(&chat, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat by id: %w", err)
	}
	return &chat, nil
}

// GetByTelegramID returns a chat by external id, or (nil, nil) when absent.
func (r *ChatsRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat by telegram id: %w", err)
	}
	return &chat, nil
}

// Save inserts the chat when it has no internal id yet, updates it otherwise.
func (r *ChatsRepository) Save(ctx context.Context, chat *models.Chat) error {
	if err := r.db.WithContext(ctx).Save(chat).Error; err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// Names returns a map of external id to display name for the given external ids.
func (r *ChatsRepository) Names(ctx context.Context, telegramIDs []int64) (map[int64]string, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).Where("telegram_id IN ?", telegramIDs).Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("get chat names: %w", err)
	}

	names := make(map[int64]string, len(chats))
	for i := range chats {
		names[chats[i].TelegramID] = chats[i].DisplayName()
	}
	return names, nil
}

// Destroy removes the chat and every record it owns in one transaction.
// Participations referencing the chat from either side go with it.
func (r *ChatsRepository) Destroy(ctx context.Context, chat *models.Chat) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.Pair{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.Single{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.Winner{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ? OR participant_id = ?", chat.ID, chat.ID).
			Delete(&models.Participation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Chat{}, chat.ID).Error
	})
	if err != nil {
		return fmt.Errorf("destroy chat %d: %w", chat.ID, err)
	}
	return nil
}

// Count returns the total number of chats.
func (r *ChatsRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Chat{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chats: %w", err)
	}
	return count, nil
}
