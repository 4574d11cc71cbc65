package workers

import (
	"context"
	"encoding/json"

	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/models"
	"github.com/shizoid/shizoid/internal/queue"
)

// ChatFinder resolves chats by external id.
type ChatFinder interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Chat, error)
}

// ParticipationStore is the participation persistence the linker needs.
type ParticipationStore interface {
	Link(ctx context.Context, chatID, participantID int64) error
	MarkLeft(ctx context.Context, chatID, participantID int64) error
}

// Linker consumes participant-link jobs and keeps the participations table
// in step with what the source reports.
type Linker struct {
	chats          ChatFinder
	participations ParticipationStore
	log            *logger.Logger
}

// NewLinker creates a linker worker.
func NewLinker(chats ChatFinder, participations ParticipationStore, log *logger.Logger) *Linker {
	return &Linker{chats: chats, participations: participations, log: log}
}

// Handle processes a single participant-link message. Payload ids are
// external ids; either chat having vanished makes the job a no-op.
func (l *Linker) Handle(data []byte) error {
	var job queue.ParticipantLinkJob
	if err := json.Unmarshal(data, &job); err != nil {
		l.log.Error().Err(err).Msg("invalid participant link payload, skipping")
		return nil
	}

	ctx := context.Background()

	chat, err := l.chats.GetByTelegramID(ctx, job.ChatID)
	if err != nil {
		return err
	}
	user, err := l.chats.GetByTelegramID(ctx, job.UserID)
	if err != nil {
		return err
	}
	if chat == nil || user == nil {
		l.log.Debug().
			Int64("chat", job.ChatID).
			Int64("user", job.UserID).
			Msg("participant link target gone, skipping")
		return nil
	}

	if err := l.participations.Link(ctx, chat.ID, user.ID); err != nil {
		return err
	}

	if job.LeftID != nil {
		left, err := l.chats.GetByTelegramID(ctx, *job.LeftID)
		if err != nil {
			return err
		}
		if left != nil {
			if err := l.participations.MarkLeft(ctx, chat.ID, left.ID); err != nil {
				return err
			}
		}
	}

	return nil
}
