package message_repo

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/entity"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/state"
)

type SQLMessageRepo struct {
	AppState *state.AppState
}

func NewSQLMessageRepo(appState *state.AppState) *SQLMessageRepo {
	return &SQLMessageRepo{AppState: appState}
}

func (r *SQLMessageRepo) InsertMessage(ctx context.Context, msg *entity.ConferenceMessage) *app_error.AppError {
	if err := r.AppState.DB.WithContext(ctx).Create(msg).Error; err != nil {
		log.Error().Err(err).Str("conference_id", msg.ConferenceID).Msg("failed to insert conference message")
		return app_error.NewAppError(http.StatusInternalServerError, "failed to save message", "db-error")
	}
	return nil
}

func (r *SQLMessageRepo) ListMessages(ctx context.Context, conferenceID string) ([]entity.ConferenceMessage, *app_error.AppError) {
	messages := make([]entity.ConferenceMessage, 0)
	err := r.AppState.DB.WithContext(ctx).
		Where("conference_id = ?", conferenceID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		log.Error().Err(err).Str("conference_id", conferenceID).Msg("failed to query conference messages")
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to fetch messages", "db-error")
	}
	return messages, nil
}
