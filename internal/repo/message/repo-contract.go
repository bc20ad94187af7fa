package message_repo

import (
	"context"

	"github.com/xenn00/conference-system/internal/entity"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/state"
)

type MessageRepoContract interface {
	InsertMessage(ctx context.Context, msg *entity.ConferenceMessage) *app_error.AppError
	ListMessages(ctx context.Context, conferenceID string) ([]entity.ConferenceMessage, *app_error.AppError)
}

// NewMessageRepo stores messages in Mongo when it is configured and falls
// back to the SQL database otherwise.
func NewMessageRepo(appState *state.AppState) MessageRepoContract {
	if db := appState.MongoDatabase(); db != nil {
		return NewMongoMessageRepo(db)
	}
	return NewSQLMessageRepo(appState)
}
