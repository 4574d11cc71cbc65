package workers

import (
	"context"
	"encoding/json"

	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/models"
	"github.com/shizoid/shizoid/internal/queue"
)

// ChatRemover is the chat persistence the destroyer needs.
type ChatRemover interface {
	GetByID(ctx context.Context, id int64) (*models.Chat, error)
	Destroy(ctx context.Context, chat *models.Chat) error
}

// Destroyer consumes deletion jobs from the delete lane. Personal chats are
// never destroyed here, whatever the payload says.
type Destroyer struct {
	chats ChatRemover
	log   *logger.Logger
}

// NewDestroyer creates a destroyer worker.
func NewDestroyer(chats ChatRemover, log *logger.Logger) *Destroyer {
	return &Destroyer{chats: chats, log: log}
}

// Handle processes a single deletion message.
func (d *Destroyer) Handle(data []byte) error {
	var job queue.DeletionJob
	if err := json.Unmarshal(data, &job); err != nil {
		d.log.Error().Err(err).Msg("invalid deletion payload, skipping")
		return nil
	}

	ctx := context.Background()

	chat, err := d.chats.GetByID(ctx, job.ID)
	if err != nil {
		d.log.Error().Err(err).Str("task", job.TaskID.String()).Msg("deletion lookup failed")
		return err
	}
	if chat == nil {
		// already gone, duplicate delivery or a previous run finished the job
		return nil
	}
	if chat.Personal() {
		d.log.Debug().Int64("chat", chat.ID).Msg("refusing to destroy personal chat")
		return nil
	}

	if err := d.chats.Destroy(ctx, chat); err != nil {
		d.log.Error().Err(err).Str("task", job.TaskID.String()).Msg("chat destroy failed")
		return err
	}

	d.log.Info().Int64("chat", chat.ID).Msg("chat destroyed")
	return nil
}
