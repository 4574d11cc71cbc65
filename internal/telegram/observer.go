package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/models"
)

// Reconciler learns chats and senders from inbound messages.
type Reconciler interface {
	Learn(ctx context.Context, msg *tgmodels.Message) (*models.Chat, error)
}

// ContextBuffer records recently seen message identifiers per chat.
type ContextBuffer interface {
	Promote(ctx context.Context, chatID int64, ids []int64) ([]int64, error)
}

// SeenFilter deduplicates resource keys.
type SeenFilter interface {
	SeenOrRecord(ctx context.Context, key string) (bool, error)
}

// Observer feeds every inbound update through reconciliation, promotes the
// message id into the chat's recency context, and records any links so the
// conversational layer can skip ones it already reacted to.
type Observer struct {
	identity Reconciler
	buffer   ContextBuffer
	filter   SeenFilter
	log      *logger.Logger
}

// NewObserver creates an observer.
func NewObserver(identity Reconciler, buffer ContextBuffer, filter SeenFilter, log *logger.Logger) *Observer {
	return &Observer{
		identity: identity,
		buffer:   buffer,
		filter:   filter,
		log:      log,
	}
}

// HandleUpdate is the default update handler for the bot client. Errors on
// the reconciliation path abort the update so the transport retries it;
// buffer and filter failures only lose ambient context and are logged.
func (o *Observer) HandleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	chat, err := o.identity.Learn(ctx, msg)
	if err != nil {
		o.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("reconciliation failed")
		return
	}

	if _, err := o.buffer.Promote(ctx, chat.ID, []int64{int64(msg.ID)}); err != nil {
		o.log.Error().Err(err).Int64("chat", chat.ID).Msg("context promote failed")
	}

	for _, link := range messageLinks(msg) {
		seen, err := o.filter.SeenOrRecord(ctx, link)
		if err != nil {
			o.log.Error().Err(err).Str("url", link).Msg("url dedup failed")
			continue
		}
		if seen {
			o.log.Debug().Str("url", link).Msg("url already seen")
		}
	}
}

// messageLinks extracts url entities from the message text.
func messageLinks(msg *tgmodels.Message) []string {
	var links []string
	text := []rune(msg.Text)
	for _, e := range msg.Entities {
		if e.Type != tgmodels.MessageEntityTypeURL {
			continue
		}
		if e.Offset < 0 || e.Offset+e.Length > len(text) {
			continue
		}
		links = append(links, string(text[e.Offset:e.Offset+e.Length]))
	}
	return links
}
