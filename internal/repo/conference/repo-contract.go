package conference_repo

import (
	"context"
	"time"

	"github.com/xenn00/conference-system/internal/entity"
	app_error "github.com/xenn00/conference-system/internal/errors"
)

type ConferenceRepoContract interface {
	CreateConference(ctx context.Context, conf *entity.Conference) *app_error.AppError
	FindByID(ctx context.Context, id string) (*entity.Conference, *app_error.AppError)
	FindByLink(ctx context.Context, link string) (*entity.Conference, *app_error.AppError)
	EndConference(ctx context.Context, id, userID string, at time.Time) (*entity.Conference, bool, *app_error.AppError)

	UpsertParticipant(ctx context.Context, conferenceID, userID string, at time.Time) (*entity.Participant, *app_error.AppError)
	FindParticipant(ctx context.Context, conferenceID, userID string) (*entity.Participant, *app_error.AppError)
	UpdateParticipantFlags(ctx context.Context, conferenceID, userID string, isMuted, isVideoOff *bool) (*entity.Participant, *app_error.AppError)
	MarkParticipantLeft(ctx context.Context, conferenceID, userID string, at time.Time) (*entity.Participant, *app_error.AppError)

	FindSummary(ctx context.Context, conferenceID string) (*entity.ConferenceSummary, *app_error.AppError)
	UpsertAutoSummary(ctx context.Context, conferenceID, text string, date time.Time) (*entity.ConferenceSummary, *app_error.AppError)
	UpsertManualSummary(ctx context.Context, conferenceID, text string, date time.Time) (*entity.ConferenceSummary, *app_error.AppError)
}
