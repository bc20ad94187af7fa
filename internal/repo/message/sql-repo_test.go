package message_repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenn00/conference-system/internal/entity"
	"github.com/xenn00/conference-system/state"
)

func TestSQLMessageRepo_ListsAscending(t *testing.T) {
	db, sqlDB, err := state.InitSQLite(":memory:")
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, state.Migrate(db))

	appState := &state.AppState{DB: db}
	repo := NewMessageRepo(appState)
	_, isSQL := repo.(*SQLMessageRepo)
	require.True(t, isSQL, "without mongo the SQL repo is used")

	ctx := context.Background()
	base := time.Now().UTC()
	for i, content := range []string{"third", "first", "second"} {
		offset := map[int]time.Duration{0: 2 * time.Second, 1: 0, 2: time.Second}[i]
		require.Nil(t, repo.InsertMessage(ctx, &entity.ConferenceMessage{
			ID:           uuid.New().String(),
			ConferenceID: "c1",
			UserID:       "alice",
			Content:      content,
			Type:         entity.MessageTypeText,
			CreatedAt:    base.Add(offset),
		}))
	}
	require.Nil(t, repo.InsertMessage(ctx, &entity.ConferenceMessage{
		ID: uuid.New().String(), ConferenceID: "other", UserID: "bob", Content: "x", Type: entity.MessageTypeText, CreatedAt: base,
	}))

	msgs, appErr := repo.ListMessages(ctx, "c1")
	require.Nil(t, appErr)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})

	empty, appErr := repo.ListMessages(ctx, "none")
	require.Nil(t, appErr)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
