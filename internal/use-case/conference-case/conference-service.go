package conference_service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	"github.com/xenn00/conference-system/internal/entity"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/internal/metrics"
	conference_repo "github.com/xenn00/conference-system/internal/repo/conference"
	message_repo "github.com/xenn00/conference-system/internal/repo/message"
	"github.com/xenn00/conference-system/internal/summarizer"
	"github.com/xenn00/conference-system/internal/utils"
	"github.com/xenn00/conference-system/state"
)

const (
	linkCacheTTL   = 24 * time.Hour
	statusCacheTTL = time.Minute

	NoMessagesToSummarize = "no messages to summarize"
)

type ConferenceService struct {
	Repo      conference_repo.ConferenceRepoContract
	Messages  message_repo.MessageRepoContract
	Completer summarizer.TextCompleter // nil when summaries are not configured
	Redis     *redis.Client            // optional cache
	Now       func() time.Time
}

func NewConferenceService(appState *state.AppState, completer summarizer.TextCompleter) *ConferenceService {
	return &ConferenceService{
		Repo:      conference_repo.NewConferenceRepo(appState),
		Messages:  message_repo.NewMessageRepo(appState),
		Completer: completer,
		Redis:     appState.Redis,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

var _ ConferenceServiceContract = (*ConferenceService)(nil)

type conferenceStatus struct {
	Exists   bool `json:"exists"`
	IsActive bool `json:"is_active"`
}

func linkCacheKey(link string) string { return "conference:link:" + link }
func statusCacheKey(id string) string { return "conference:status:" + id }

func (s *ConferenceService) CreateConference(ctx context.Context, userID string, req conference_dto.CreateConferenceRequest) (*conference_dto.ConferenceResponse, *app_error.AppError) {
	link, err := utils.GenerateLink()
	if err != nil {
		return nil, app_error.Internal("failed to generate conference link")
	}

	conf := &entity.Conference{
		ID:        uuid.New().String(),
		Title:     req.Title,
		ChatID:    req.ChatID,
		CreatedBy: userID,
		Link:      link,
		IsActive:  true,
		StartedAt: s.Now(),
	}
	if appErr := s.Repo.CreateConference(ctx, conf); appErr != nil {
		return nil, appErr
	}

	metrics.ConferencesCreated.Inc()
	s.cacheStatus(ctx, conf.ID, conferenceStatus{Exists: true, IsActive: true})
	log.Info().Str("conference_id", conf.ID).Str("created_by", userID).Msg("conference created")

	resp := conference_dto.FromConference(conf)
	return &resp, nil
}

func (s *ConferenceService) GetConference(ctx context.Context, id string) (*conference_dto.ConferenceResponse, *app_error.AppError) {
	conf, appErr := s.Repo.FindByID(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	resp := conference_dto.FromConference(conf)
	return &resp, nil
}

// GetConferenceByLink resolves a join token. The token to id mapping never
// changes, so it is cached for a day.
func (s *ConferenceService) GetConferenceByLink(ctx context.Context, link string) (*conference_dto.ConferenceResponse, *app_error.AppError) {
	if id, _ := utils.GetCacheData[string](ctx, s.Redis, linkCacheKey(link)); id != nil {
		return s.GetConference(ctx, *id)
	}

	conf, appErr := s.Repo.FindByLink(ctx, link)
	if appErr != nil {
		return nil, appErr
	}
	if err := utils.SetCacheData(ctx, s.Redis, linkCacheKey(link), &conf.ID, linkCacheTTL); err != nil {
		log.Warn().Err(err).Msg("failed to cache conference link")
	}

	resp := conference_dto.FromConference(conf)
	return &resp, nil
}

func (s *ConferenceService) JoinConference(ctx context.Context, id, userID string) (*conference_dto.ParticipantResponse, *app_error.AppError) {
	conf, appErr := s.Repo.FindByID(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	if !conf.IsActive {
		return nil, app_error.Gone("conference has ended")
	}

	p, appErr := s.Repo.UpsertParticipant(ctx, id, userID, s.Now())
	if appErr != nil {
		return nil, appErr
	}
	resp := conference_dto.FromParticipant(*p)
	return &resp, nil
}

// UpdateParticipant only ever touches the caller's own row.
func (s *ConferenceService) UpdateParticipant(ctx context.Context, id, userID string, req conference_dto.UpdateParticipantRequest) (*conference_dto.ParticipantResponse, *app_error.AppError) {
	if _, appErr := s.Repo.FindParticipant(ctx, id, userID); appErr != nil {
		return nil, appErr
	}

	p, appErr := s.Repo.UpdateParticipantFlags(ctx, id, userID, req.IsMuted, req.IsVideoOff)
	if appErr != nil {
		return nil, appErr
	}
	resp := conference_dto.FromParticipant(*p)
	return &resp, nil
}

func (s *ConferenceService) LeaveConference(ctx context.Context, id, userID string) (*conference_dto.ParticipantResponse, *app_error.AppError) {
	p, appErr := s.Repo.MarkParticipantLeft(ctx, id, userID, s.Now())
	if appErr != nil {
		return nil, appErr
	}
	resp := conference_dto.FromParticipant(*p)
	return &resp, nil
}

// EndConference is creator only. The boolean result is false when the
// conference had already ended.
func (s *ConferenceService) EndConference(ctx context.Context, id, userID string) (*conference_dto.ConferenceResponse, bool, *app_error.AppError) {
	conf, changed, appErr := s.Repo.EndConference(ctx, id, userID, s.Now())
	if appErr != nil {
		return nil, false, appErr
	}

	if err := utils.DeleteCacheData(ctx, s.Redis, statusCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("conference_id", id).Msg("failed to invalidate conference status")
	}
	if changed {
		metrics.ConferencesEnded.Inc()
		log.Info().Str("conference_id", id).Msg("conference ended")
	}

	resp := conference_dto.FromConference(conf)
	return &resp, changed, nil
}

func (s *ConferenceService) ListMessages(ctx context.Context, id string) ([]conference_dto.MessageResponse, *app_error.AppError) {
	if _, appErr := s.Repo.FindByID(ctx, id); appErr != nil {
		return nil, appErr
	}

	messages, appErr := s.Messages.ListMessages(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	resp := make([]conference_dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp = append(resp, conference_dto.FromMessage(m))
	}
	return resp, nil
}

func (s *ConferenceService) PostMessage(ctx context.Context, id, userID string, req conference_dto.PostMessageRequest) (*conference_dto.MessageResponse, *app_error.AppError) {
	if _, appErr := s.Repo.FindByID(ctx, id); appErr != nil {
		return nil, appErr
	}

	msgType := req.Type
	if msgType == "" {
		msgType = entity.MessageTypeText
	}
	msg := &entity.ConferenceMessage{
		ID:           uuid.New().String(),
		ConferenceID: id,
		UserID:       userID,
		Content:      req.Content,
		Type:         msgType,
		CreatedAt:    s.Now(),
	}
	if appErr := s.Messages.InsertMessage(ctx, msg); appErr != nil {
		return nil, appErr
	}

	resp := conference_dto.FromMessage(*msg)
	return &resp, nil
}

func (s *ConferenceService) GetSummary(ctx context.Context, id string) (*conference_dto.SummaryResponse, *app_error.AppError) {
	summary, appErr := s.Repo.FindSummary(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	resp := conference_dto.FromSummary(summary)
	return &resp, nil
}

func (s *ConferenceService) GenerateAutoSummary(ctx context.Context, id string) (*conference_dto.AutoSummaryResponse, *app_error.AppError) {
	if s.Completer == nil {
		metrics.SummariesGenerated.WithLabelValues("unavailable").Inc()
		return nil, app_error.Unavailable("summary service is not configured")
	}

	conf, appErr := s.Repo.FindByID(ctx, id)
	if appErr != nil {
		return nil, appErr
	}

	messages, appErr := s.Messages.ListMessages(ctx, id)
	if appErr != nil {
		return nil, appErr
	}
	transcript := summarizer.Transcript(messages)
	if transcript == "" {
		metrics.SummariesGenerated.WithLabelValues("empty").Inc()
		return &conference_dto.AutoSummaryResponse{Generated: false, Message: NoMessagesToSummarize}, nil
	}

	text, err := summarizer.Summarize(ctx, s.Completer, transcript)
	if err != nil {
		metrics.SummariesGenerated.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("conference_id", id).Msg("auto summary failed")
		return nil, app_error.NewAppError(http.StatusBadGateway, fmt.Sprintf("summary generation failed: %v", err), "summary")
	}

	summary, appErr := s.Repo.UpsertAutoSummary(ctx, id, text, conf.StartedAt)
	if appErr != nil {
		return nil, appErr
	}
	metrics.SummariesGenerated.WithLabelValues("ok").Inc()

	resp := conference_dto.FromSummary(summary)
	return &conference_dto.AutoSummaryResponse{Generated: true, Summary: &resp}, nil
}

func (s *ConferenceService) EditManualSummary(ctx context.Context, id, text string) (*conference_dto.SummaryResponse, *app_error.AppError) {
	conf, appErr := s.Repo.FindByID(ctx, id)
	if appErr != nil {
		return nil, appErr
	}

	summary, appErr := s.Repo.UpsertManualSummary(ctx, id, text, conf.StartedAt)
	if appErr != nil {
		return nil, appErr
	}
	resp := conference_dto.FromSummary(summary)
	return &resp, nil
}

// CheckJoin fails with 404 for unknown and 410 for ended conferences.
func (s *ConferenceService) CheckJoin(ctx context.Context, id string) error {
	status, _ := utils.GetCacheData[conferenceStatus](ctx, s.Redis, statusCacheKey(id))
	if status == nil {
		conf, appErr := s.Repo.FindByID(ctx, id)
		switch {
		case appErr != nil && appErr.Code == http.StatusNotFound:
			status = &conferenceStatus{}
		case appErr != nil:
			return appErr
		default:
			status = &conferenceStatus{Exists: true, IsActive: conf.IsActive}
		}
		s.cacheStatus(ctx, id, *status)
	}

	if !status.Exists {
		return app_error.NotFound("conference not found")
	}
	if !status.IsActive {
		return app_error.Gone("conference has ended")
	}
	return nil
}

// RecordLeft sets left_at for a user whose last channel left the room.
func (s *ConferenceService) RecordLeft(ctx context.Context, conferenceID, userID string) error {
	return s.RecordLeftAt(ctx, conferenceID, userID, s.Now())
}

// RecordLeftAt is RecordLeft with the time the channel actually closed.
// Users who never joined over REST have no row; that is not an error.
func (s *ConferenceService) RecordLeftAt(ctx context.Context, conferenceID, userID string, at time.Time) error {
	_, appErr := s.Repo.MarkParticipantLeft(ctx, conferenceID, userID, at)
	if appErr != nil && appErr.Code != http.StatusNotFound {
		return appErr
	}
	return nil
}

func (s *ConferenceService) cacheStatus(ctx context.Context, id string, status conferenceStatus) {
	if err := utils.SetCacheData(ctx, s.Redis, statusCacheKey(id), &status, statusCacheTTL); err != nil {
		log.Warn().Err(err).Str("conference_id", id).Msg("failed to cache conference status")
	}
}
