package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shizoid/shizoid/internal/logger"
	"github.com/shizoid/shizoid/internal/models"
	"github.com/shizoid/shizoid/internal/queue"
	"github.com/shizoid/shizoid/internal/repository"
)

// fakePublisher records enqueued jobs.
type fakePublisher struct {
	metadata  []queue.MetadataSyncJob
	links     []queue.ParticipantLinkJob
	deletions []queue.DeletionJob
}

func (f *fakePublisher) PublishMetadataSync(_ context.Context, job queue.MetadataSyncJob) error {
	f.metadata = append(f.metadata, job)
	return nil
}

func (f *fakePublisher) PublishParticipantLink(_ context.Context, job queue.ParticipantLinkJob) error {
	f.links = append(f.links, job)
	return nil
}

func (f *fakePublisher) PublishDeletion(_ context.Context, job queue.DeletionJob) error {
	f.deletions = append(f.deletions, job)
	return nil
}

// fakeLeaver records leave dispatches and optionally fails them.
type fakeLeaver struct {
	calls []int64
	err   error
}

func (f *fakeLeaver) LeaveChat(_ context.Context, telegramID int64) error {
	f.calls = append(f.calls, telegramID)
	return f.err
}

// countingStore wraps a ChatStore and counts Save calls.
type countingStore struct {
	ChatStore
	saves int
}

func (c *countingStore) Save(ctx context.Context, chat *models.Chat) error {
	c.saves++
	return c.ChatStore.Save(ctx, chat)
}

type fixture struct {
	svc    *Service
	repo   *repository.ChatsRepository
	store  *countingStore
	pub    *fakePublisher
	leaver *fakeLeaver
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Chat{},
		&models.Participation{},
		&models.Pair{},
		&models.Single{},
		&models.Winner{},
	))

	repo := repository.NewChatsRepository(db)
	store := &countingStore{ChatStore: repo}
	pub := &fakePublisher{}
	leaver := &fakeLeaver{}

	return &fixture{
		svc:    NewService(store, pub, leaver, logger.Get()),
		repo:   repo,
		store:  store,
		pub:    pub,
		leaver: leaver,
	}
}

func groupMessage() *tgmodels.Message {
	return &tgmodels.Message{
		ID:   1,
		Chat: tgmodels.Chat{ID: 100, Type: "group", Title: "Foo"},
		From: &tgmodels.User{ID: 7, FirstName: "Pavel"},
	}
}

func TestLearn_CreatesChatAndSender(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chat, err := f.svc.Learn(ctx, groupMessage())
	require.NoError(t, err)

	assert.EqualValues(t, 100, chat.TelegramID)
	assert.Equal(t, models.KindFaction, chat.Kind)

	sender, err := f.repo.GetByTelegramID(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, sender)
	assert.Equal(t, models.KindPersonal, sender.Kind)

	// two metadata jobs, one participant link
	require.Len(t, f.pub.metadata, 2)
	assert.Equal(t, chat.ID, f.pub.metadata[0].ID)
	assert.Equal(t, "group", f.pub.metadata[0].Kind)
	require.NotNil(t, f.pub.metadata[0].Title)
	assert.Equal(t, "Foo", *f.pub.metadata[0].Title)

	assert.Equal(t, sender.ID, f.pub.metadata[1].ID)
	assert.Equal(t, "private", f.pub.metadata[1].Kind)
	assert.Nil(t, f.pub.metadata[1].Title)

	require.Len(t, f.pub.links, 1)
	assert.EqualValues(t, 100, f.pub.links[0].ChatID)
	assert.EqualValues(t, 7, f.pub.links[0].UserID)
	assert.Nil(t, f.pub.links[0].LeftID)
}

func TestLearn_IsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Learn(ctx, groupMessage())
	require.NoError(t, err)
	second, err := f.svc.Learn(ctx, groupMessage())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	// one chat plus one sender, however many times the event arrives
	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestLearn_MigrationUpdatesExternalIDInPlace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chat, err := f.svc.Learn(ctx, &tgmodels.Message{
		Chat: tgmodels.Chat{ID: 100, Type: "group"},
	})
	require.NoError(t, err)

	migrated, err := f.svc.Learn(ctx, &tgmodels.Message{
		Chat:            tgmodels.Chat{ID: 100, Type: "group"},
		MigrateToChatID: 200,
	})
	require.NoError(t, err)

	assert.Equal(t, chat.ID, migrated.ID, "internal id survives migration")
	assert.EqualValues(t, 200, migrated.TelegramID)

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "migration must not create a second chat")
}

func TestLearn_PrivateMessageHasNoDistinctSender(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Learn(context.Background(), &tgmodels.Message{
		Chat: tgmodels.Chat{ID: 7, Type: "private", FirstName: "Pavel"},
		From: &tgmodels.User{ID: 7, FirstName: "Pavel"},
	})
	require.NoError(t, err)

	assert.Len(t, f.pub.metadata, 1)
	assert.Empty(t, f.pub.links)
}

func TestLearn_LeftMemberRidesTheLinkJob(t *testing.T) {
	f := setup(t)

	msg := groupMessage()
	msg.LeftChatMember = &tgmodels.User{ID: 55}

	_, err := f.svc.Learn(context.Background(), msg)
	require.NoError(t, err)

	require.Len(t, f.pub.links, 1)
	require.NotNil(t, f.pub.links[0].LeftID)
	assert.EqualValues(t, 55, *f.pub.links[0].LeftID)
}

func strPtr(s string) *string { return &s }

func TestApplyMetadata_WritesOnlyDiffs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction, Title: strPtr("Old")}
	require.NoError(t, f.repo.Save(ctx, chat))

	err := f.svc.ApplyMetadata(ctx, queue.MetadataSyncJob{
		ID:    chat.ID,
		Title: strPtr("New"),
		Kind:  "supergroup",
	})
	require.NoError(t, err)

	got, err := f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", *got.Title)
	assert.Equal(t, models.KindSupergroup, got.Kind)
}

func TestApplyMetadata_DisabledChatStaysDisabled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction}
	require.NoError(t, f.repo.Save(ctx, chat))

	err := f.svc.ApplyMetadata(ctx, queue.MetadataSyncJob{
		ID:    chat.ID,
		Title: strPtr("Renamed"),
		Kind:  "group",
	})
	require.NoError(t, err)

	got, err := f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", *got.Title)
	assert.Nil(t, got.ActiveAt, "metadata sync must never re-enable a chat")
}

func TestApplyMetadata_EnabledChatRefreshesActivity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	stale := time.Now().Add(-24 * time.Hour)
	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction, ActiveAt: &stale}
	require.NoError(t, f.repo.Save(ctx, chat))

	// no field differs, the activity marker still moves forward
	err := f.svc.ApplyMetadata(ctx, queue.MetadataSyncJob{ID: chat.ID, Kind: "group"})
	require.NoError(t, err)

	got, err := f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActiveAt)
	assert.True(t, got.ActiveAt.After(stale))
}

func TestApplyMetadata_IdenticalSnapshotIsNoop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction, Title: strPtr("Foo")}
	require.NoError(t, f.repo.Save(ctx, chat))

	job := queue.MetadataSyncJob{ID: chat.ID, Title: strPtr("Foo"), Kind: "group"}

	require.NoError(t, f.svc.ApplyMetadata(ctx, job))
	saves := f.store.saves
	require.NoError(t, f.svc.ApplyMetadata(ctx, job))

	assert.Equal(t, saves, f.store.saves, "identical snapshot on a disabled chat must not write")
}

func TestApplyMetadata_MissingChatIsSoftNoop(t *testing.T) {
	f := setup(t)

	err := f.svc.ApplyMetadata(context.Background(), queue.MetadataSyncJob{ID: 404, Kind: "group"})
	assert.NoError(t, err, "target may have been legitimately destroyed")
}

func TestLeave_NonPersonalDispatchesLeaveCall(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	now := time.Now()
	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction, ActiveAt: &now}
	require.NoError(t, f.repo.Save(ctx, chat))

	require.NoError(t, f.svc.Leave(ctx, chat))

	got, err := f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ActiveAt)
	assert.Equal(t, []int64{100}, f.leaver.calls)
}

func TestLeave_PersonalSkipsDispatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	now := time.Now()
	chat := &models.Chat{TelegramID: 7, Kind: models.KindPersonal, ActiveAt: &now}
	require.NoError(t, f.repo.Save(ctx, chat))

	require.NoError(t, f.svc.Leave(ctx, chat))

	assert.Empty(t, f.leaver.calls)
	got, err := f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ActiveAt)
}

func TestLeave_DispatchFailureIsSwallowed(t *testing.T) {
	f := setup(t)
	f.leaver.err = errors.New("flood wait")
	ctx := context.Background()

	now := time.Now()
	chat := &models.Chat{TelegramID: 100, Kind: models.KindSupergroup, ActiveAt: &now}
	require.NoError(t, f.repo.Save(ctx, chat))

	err := f.svc.Leave(ctx, chat)
	assert.NoError(t, err, "disable is durable regardless of the external call")

	got, err := f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ActiveAt)
}

func TestLeave_NilLeaverOnlyDisables(t *testing.T) {
	f := setup(t)
	svc := NewService(f.store, f.pub, nil, logger.Get())
	ctx := context.Background()

	now := time.Now()
	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction, ActiveAt: &now}
	require.NoError(t, f.repo.Save(ctx, chat))

	require.NoError(t, svc.Leave(ctx, chat))
	assert.Nil(t, chat.ActiveAt)
}

func TestForget_EnqueuesDeletion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction}
	require.NoError(t, f.repo.Save(ctx, chat))

	require.NoError(t, f.svc.Forget(ctx, chat))

	require.Len(t, f.pub.deletions, 1)
	assert.Equal(t, chat.ID, f.pub.deletions[0].ID)
}

func TestWinnerLabel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction}
	require.NoError(t, f.repo.Save(ctx, chat))

	require.Error(t, f.svc.SetWinnerLabel(ctx, chat, ""))

	require.NoError(t, f.svc.SetWinnerLabel(ctx, chat, "pirate of the day"))
	got, err := f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Winner)
	assert.Equal(t, "pirate of the day", *got.Winner)

	require.NoError(t, f.svc.ClearWinnerLabel(ctx, got))
	got, err = f.repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Winner)
}
