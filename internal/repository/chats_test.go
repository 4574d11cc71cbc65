package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shizoid/shizoid/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Chat{},
		&models.Participation{},
		&models.Pair{},
		&models.Single{},
		&models.Winner{},
		&models.URL{},
	))
	return db
}

func strPtr(s string) *string { return &s }

func TestChatsRepository_SaveAndGet(t *testing.T) {
	repo := NewChatsRepository(setupDB(t))
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction, Title: strPtr("Foo")}
	require.NoError(t, repo.Save(ctx, chat))
	assert.NotZero(t, chat.ID)

	byExternal, err := repo.GetByTelegramID(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, byExternal)
	assert.Equal(t, chat.ID, byExternal.ID)
	assert.Equal(t, models.KindFaction, byExternal.Kind)

	byInternal, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, byInternal)
	assert.Equal(t, "Foo", *byInternal.Title)
}

func TestChatsRepository_MissingIsNilNil(t *testing.T) {
	repo := NewChatsRepository(setupDB(t))
	ctx := context.Background()

	chat, err := repo.GetByTelegramID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, chat)

	chat, err = repo.GetByID(ctx, 404)
	require.NoError(t, err)
	assert.Nil(t, chat)
}

func TestChatsRepository_SaveUpdatesInPlace(t *testing.T) {
	repo := NewChatsRepository(setupDB(t))
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction}
	require.NoError(t, repo.Save(ctx, chat))
	id := chat.ID

	// external id migration updates the row, no second record
	chat.TelegramID = 200
	require.NoError(t, repo.Save(ctx, chat))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	migrated, err := repo.GetByTelegramID(ctx, 200)
	require.NoError(t, err)
	require.NotNil(t, migrated)
	assert.Equal(t, id, migrated.ID)
}

func TestChatsRepository_Names(t *testing.T) {
	repo := NewChatsRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.Chat{TelegramID: 1, Kind: models.KindPersonal, Username: strPtr("alice")}))
	require.NoError(t, repo.Save(ctx, &models.Chat{TelegramID: 2, Kind: models.KindPersonal, FirstName: strPtr("Bob")}))

	names, err := repo.Names(ctx, []int64{1, 2, 3})
	require.NoError(t, err)

	assert.Equal(t, map[int64]string{1: "alice", 2: "Bob"}, names)
}

func TestChatsRepository_DestroyCascades(t *testing.T) {
	db := setupDB(t)
	repo := NewChatsRepository(db)
	ctx := context.Background()

	chat := &models.Chat{TelegramID: 100, Kind: models.KindFaction}
	require.NoError(t, repo.Save(ctx, chat))
	other := &models.Chat{TelegramID: 7, Kind: models.KindPersonal}
	require.NoError(t, repo.Save(ctx, other))

	require.NoError(t, db.Create(&models.Pair{ChatID: chat.ID}).Error)
	require.NoError(t, db.Create(&models.Single{ChatID: chat.ID}).Error)
	require.NoError(t, db.Create(&models.Winner{ChatID: chat.ID, UserID: 7, WonOn: time.Now()}).Error)
	require.NoError(t, db.Create(&models.Participation{ChatID: chat.ID, ParticipantID: other.ID}).Error)

	// records owned by the surviving chat must not be touched
	require.NoError(t, db.Create(&models.Pair{ChatID: other.ID}).Error)

	require.NoError(t, repo.Destroy(ctx, chat))

	gone, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	for _, check := range []struct {
		name  string
		model any
		want  int64
	}{
		{"pairs", &models.Pair{}, 1},
		{"singles", &models.Single{}, 0},
		{"winners", &models.Winner{}, 0},
		{"participations", &models.Participation{}, 0},
	} {
		var count int64
		require.NoError(t, db.Model(check.model).Count(&count).Error)
		assert.Equal(t, check.want, count, check.name)
	}
}
