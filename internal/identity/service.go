// Package identity reconciles chat and user metadata arriving from the
// message source. Reconciliation establishes that a chat exists, then pushes
// all metadata work onto the queue so the inbound path never blocks on
// anything beyond the upsert itself.
package identity

import (
	"context"
	"fmt"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/models"
	"github.com/shizoid/shizoid/internal/queue"
)

// ChatStore is the chat persistence the service needs.
type ChatStore interface {
	GetByID(ctx context.Context, id int64) (*models.Chat, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Chat, error)
	Save(ctx context.Context, chat *models.Chat) error
	Names(ctx context.Context, telegramIDs []int64) (map[int64]string, error)
}

// Publisher enqueues asynchronous jobs for the worker pipeline.
type Publisher interface {
	PublishMetadataSync(ctx context.Context, job queue.MetadataSyncJob) error
	PublishParticipantLink(ctx context.Context, job queue.ParticipantLinkJob) error
	PublishDeletion(ctx context.Context, job queue.DeletionJob) error
}

// LeaveDispatcher issues the outbound leave-conversation call.
type LeaveDispatcher interface {
	LeaveChat(ctx context.Context, telegramID int64) error
}

// Service implements the reconciliation protocol.
type Service struct {
	chats  ChatStore
	pub    Publisher
	leaver LeaveDispatcher
	log    *logger.Logger
}

// NewService creates a reconciliation service. leaver may be nil when the
// process has no outbound client; Leave then only disables local state.
func NewService(chats ChatStore, pub Publisher, leaver LeaveDispatcher, log *logger.Logger) *Service {
	return &Service{
		chats:  chats,
		pub:    pub,
		leaver: leaver,
		log:    log,
	}
}

// Learn upserts the chat a message was seen in, follows an id migration if
// the source signals one, and enqueues the metadata snapshot for the worker
// pipeline. A sender distinct from the chat itself is upserted the same way
// as a personal chat, and a participant-link job is enqueued for the pair.
// Learn with the same message twice yields the same single chat record.
func (s *Service) Learn(ctx context.Context, msg *tgmodels.Message) (*models.Chat, error) {
	chat, err := s.chats.GetByTelegramID(ctx, msg.Chat.ID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		chat = &models.Chat{
			TelegramID: msg.Chat.ID,
			Kind:       models.AdoptKind(string(msg.Chat.Type)),
		}
	}
	if msg.MigrateToChatID != 0 {
		// the source reassigned the external id (group promoted to
		// supergroup); same chat, new address
		chat.TelegramID = msg.MigrateToChatID
	}
	// saved even when nothing changed, so the chat exists before any
	// queued job references it
	if err := s.chats.Save(ctx, chat); err != nil {
		return nil, err
	}

	if err := s.pub.PublishMetadataSync(ctx, queue.MetadataSyncJob{
		TaskID:    uuid.New(),
		ID:        chat.ID,
		Title:     optStr(msg.Chat.Title),
		FirstName: optStr(msg.Chat.FirstName),
		LastName:  optStr(msg.Chat.LastName),
		Username:  optStr(msg.Chat.Username),
		Kind:      string(msg.Chat.Type),
	}); err != nil {
		return nil, err
	}

	if msg.From != nil && msg.From.ID != msg.Chat.ID {
		if err := s.learnSender(ctx, chat, msg); err != nil {
			return nil, err
		}
	}

	return chat, nil
}

// learnSender upserts a personal chat for the message sender and enqueues
// their metadata snapshot plus the participant-link job for the chat.
func (s *Service) learnSender(ctx context.Context, chat *models.Chat, msg *tgmodels.Message) error {
	user, err := s.chats.GetByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if user == nil {
		user = &models.Chat{
			TelegramID: msg.From.ID,
			Kind:       models.KindPersonal,
		}
		if err := s.chats.Save(ctx, user); err != nil {
			return err
		}
	}

	if err := s.pub.PublishMetadataSync(ctx, queue.MetadataSyncJob{
		TaskID:    uuid.New(),
		ID:        user.ID,
		FirstName: optStr(msg.From.FirstName),
		LastName:  optStr(msg.From.LastName),
		Username:  optStr(msg.From.Username),
		Kind:      "private",
	}); err != nil {
		return err
	}

	link := queue.ParticipantLinkJob{
		TaskID: uuid.New(),
		ChatID: chat.TelegramID,
		UserID: user.TelegramID,
	}
	if msg.LeftChatMember != nil {
		leftID := msg.LeftChatMember.ID
		link.LeftID = &leftID
	}
	return s.pub.PublishParticipantLink(ctx, link)
}

// ApplyMetadata applies a queued metadata snapshot to a chat. Only fields
// that actually differ are written; the declared kind is re-mapped before
// comparison. The activity marker is refreshed only while the chat is
// enabled, so a metadata sync never re-enables a chat the user has left.
// A missing chat is a soft no-op: it may have been legitimately destroyed
// between enqueue and execution.
func (s *Service) ApplyMetadata(ctx context.Context, job queue.MetadataSyncJob) error {
	chat, err := s.chats.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if chat == nil {
		s.log.Debug().Int64("chat", job.ID).Msg("metadata sync target gone, skipping")
		return nil
	}

	changed := false
	if !eqStr(chat.Title, job.Title) {
		chat.Title = job.Title
		changed = true
	}
	if !eqStr(chat.FirstName, job.FirstName) {
		chat.FirstName = job.FirstName
		changed = true
	}
	if !eqStr(chat.LastName, job.LastName) {
		chat.LastName = job.LastName
		changed = true
	}
	if !eqStr(chat.Username, job.Username) {
		chat.Username = job.Username
		changed = true
	}
	if kind := models.AdoptKind(job.Kind); chat.Kind != kind {
		chat.Kind = kind
		changed = true
	}
	if chat.Enabled() {
		chat.Enable()
		changed = true
	}

	if !changed {
		return nil
	}
	return s.chats.Save(ctx, chat)
}

// Leave disables the chat unconditionally, then issues a best-effort leave
// call for non-personal chats. A failed dispatch is logged and swallowed:
// the disabled local state is the durable source of truth either way.
func (s *Service) Leave(ctx context.Context, chat *models.Chat) error {
	chat.Disable()
	if err := s.chats.Save(ctx, chat); err != nil {
		return err
	}
	if chat.Personal() {
		return nil
	}
	if s.leaver == nil {
		s.log.Warn().Int64("chat", chat.ID).Msg("no outbound client, leave not dispatched")
		return nil
	}
	if err := s.leaver.LeaveChat(ctx, chat.TelegramID); err != nil {
		s.log.Error().Err(err).Int64("chat", chat.ID).Msg("unable to leave chat")
	}
	return nil
}

// Forget enqueues asynchronous destruction of the chat. The destroyer
// worker refuses to touch personal chats, so this is safe to call on any.
func (s *Service) Forget(ctx context.Context, chat *models.Chat) error {
	return s.pub.PublishDeletion(ctx, queue.DeletionJob{
		TaskID: uuid.New(),
		ID:     chat.ID,
	})
}

// SetWinnerLabel turns the winner-of-the-day game on with the given label.
func (s *Service) SetWinnerLabel(ctx context.Context, chat *models.Chat, label string) error {
	if label == "" {
		return fmt.Errorf("winner label cannot be empty")
	}
	chat.Winner = &label
	return s.chats.Save(ctx, chat)
}

// ClearWinnerLabel turns the winner-of-the-day game off.
func (s *Service) ClearWinnerLabel(ctx context.Context, chat *models.Chat) error {
	chat.Winner = nil
	return s.chats.Save(ctx, chat)
}

// Names resolves external ids to display names.
func (s *Service) Names(ctx context.Context, telegramIDs []int64) (map[int64]string, error) {
	return s.chats.Names(ctx, telegramIDs)
}

// optStr converts the source's empty-string "absent" convention into nil.
func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
