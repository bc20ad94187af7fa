package conference_service

import (
	"context"
	"time"

	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	app_error "github.com/xenn00/conference-system/internal/errors"
)

type ConferenceServiceContract interface {
	CreateConference(ctx context.Context, userID string, req conference_dto.CreateConferenceRequest) (*conference_dto.ConferenceResponse, *app_error.AppError)
	GetConference(ctx context.Context, id string) (*conference_dto.ConferenceResponse, *app_error.AppError)
	GetConferenceByLink(ctx context.Context, link string) (*conference_dto.ConferenceResponse, *app_error.AppError)
	JoinConference(ctx context.Context, id, userID string) (*conference_dto.ParticipantResponse, *app_error.AppError)
	UpdateParticipant(ctx context.Context, id, userID string, req conference_dto.UpdateParticipantRequest) (*conference_dto.ParticipantResponse, *app_error.AppError)
	LeaveConference(ctx context.Context, id, userID string) (*conference_dto.ParticipantResponse, *app_error.AppError)
	EndConference(ctx context.Context, id, userID string) (*conference_dto.ConferenceResponse, bool, *app_error.AppError)

	ListMessages(ctx context.Context, id string) ([]conference_dto.MessageResponse, *app_error.AppError)
	PostMessage(ctx context.Context, id, userID string, req conference_dto.PostMessageRequest) (*conference_dto.MessageResponse, *app_error.AppError)

	GetSummary(ctx context.Context, id string) (*conference_dto.SummaryResponse, *app_error.AppError)
	GenerateAutoSummary(ctx context.Context, id string) (*conference_dto.AutoSummaryResponse, *app_error.AppError)
	EditManualSummary(ctx context.Context, id, text string) (*conference_dto.SummaryResponse, *app_error.AppError)

	// CheckJoin and RecordLeft back the signaling relay.
	CheckJoin(ctx context.Context, id string) error
	RecordLeft(ctx context.Context, conferenceID, userID string) error
	RecordLeftAt(ctx context.Context, conferenceID, userID string, at time.Time) error
}
