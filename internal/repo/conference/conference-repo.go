package conference_repo

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/entity"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/state"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConferenceRepo struct {
	AppState *state.AppState
}

func NewConferenceRepo(appState *state.AppState) ConferenceRepoContract {
	return &ConferenceRepo{
		AppState: appState,
	}
}

func dbError(err error, msg string) *app_error.AppError {
	log.Error().Err(err).Msg(msg)
	return app_error.NewAppError(http.StatusInternalServerError, msg, "db-error")
}

// CreateConference inserts the conference and its creator's participant row
// in one transaction.
func (r *ConferenceRepo) CreateConference(ctx context.Context, conf *entity.Conference) *app_error.AppError {
	err := r.AppState.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(conf).Error; err != nil {
			return err
		}
		creator := entity.Participant{
			ConferenceID: conf.ID,
			UserID:       conf.CreatedBy,
			JoinedAt:     conf.StartedAt,
		}
		if err := tx.Create(&creator).Error; err != nil {
			return err
		}
		conf.Participants = []entity.Participant{creator}
		return nil
	})
	if err != nil {
		return dbError(err, "failed to create conference")
	}
	return nil
}

func (r *ConferenceRepo) FindByID(ctx context.Context, id string) (*entity.Conference, *app_error.AppError) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *ConferenceRepo) FindByLink(ctx context.Context, link string) (*entity.Conference, *app_error.AppError) {
	return r.findOne(ctx, "link = ?", link)
}

func (r *ConferenceRepo) findOne(ctx context.Context, query string, arg string) (*entity.Conference, *app_error.AppError) {
	var conf entity.Conference
	err := r.AppState.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Where(query, arg).
		First(&conf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.NotFound("conference not found")
		}
		return nil, dbError(err, "failed to fetch conference")
	}
	return &conf, nil
}

// EndConference deactivates a conference on behalf of its creator. The
// boolean result reports whether this call changed the state.
func (r *ConferenceRepo) EndConference(ctx context.Context, id, userID string, at time.Time) (*entity.Conference, bool, *app_error.AppError) {
	var (
		conf    entity.Conference
		changed bool
		appErr  *app_error.AppError
	)

	err := r.AppState.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&conf).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				appErr = app_error.NotFound("conference not found")
			}
			return err
		}
		if conf.CreatedBy != userID {
			appErr = app_error.Forbidden("only the creator can end this conference")
			return errors.New(appErr.Message)
		}
		if !conf.IsActive {
			return nil
		}

		res := tx.Model(&entity.Conference{}).
			Where("id = ? AND is_active = ?", id, true).
			Updates(map[string]any{"is_active": false, "ended_at": at})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		conf.IsActive = false
		conf.EndedAt = &at
		return nil
	})
	if appErr != nil {
		return nil, false, appErr
	}
	if err != nil {
		return nil, false, dbError(err, "failed to end conference")
	}
	return &conf, changed, nil
}

// UpsertParticipant inserts the row or, on rejoin, clears left_at in place.
func (r *ConferenceRepo) UpsertParticipant(ctx context.Context, conferenceID, userID string, at time.Time) (*entity.Participant, *app_error.AppError) {
	p := entity.Participant{
		ConferenceID: conferenceID,
		UserID:       userID,
		JoinedAt:     at,
	}

	err := r.AppState.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conference_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"left_at": nil}),
	}).Create(&p).Error
	if err != nil {
		return nil, dbError(err, "failed to upsert participant")
	}

	return r.FindParticipant(ctx, conferenceID, userID)
}

func (r *ConferenceRepo) FindParticipant(ctx context.Context, conferenceID, userID string) (*entity.Participant, *app_error.AppError) {
	var p entity.Participant
	err := r.AppState.DB.WithContext(ctx).
		Where("conference_id = ? AND user_id = ?", conferenceID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, app_error.NotFound("participant not found")
		}
		return nil, dbError(err, "failed to fetch participant")
	}
	return &p, nil
}

func (r *ConferenceRepo) UpdateParticipantFlags(ctx context.Context, conferenceID, userID string, isMuted, isVideoOff *bool) (*entity.Participant, *app_error.AppError) {
	updates := map[string]any{}
	if isMuted != nil {
		updates["is_muted"] = *isMuted
	}
	if isVideoOff != nil {
		updates["is_video_off"] = *isVideoOff
	}

	if len(updates) > 0 {
		res := r.AppState.DB.WithContext(ctx).Model(&entity.Participant{}).
			Where("conference_id = ? AND user_id = ?", conferenceID, userID).
			Updates(updates)
		if res.Error != nil {
			return nil, dbError(res.Error, "failed to update participant")
		}
	}

	return r.FindParticipant(ctx, conferenceID, userID)
}

func (r *ConferenceRepo) MarkParticipantLeft(ctx context.Context, conferenceID, userID string, at time.Time) (*entity.Participant, *app_error.AppError) {
	res := r.AppState.DB.WithContext(ctx).Model(&entity.Participant{}).
		Where("conference_id = ? AND user_id = ?", conferenceID, userID).
		Update("left_at", at)
	if res.Error != nil {
		return nil, dbError(res.Error, "failed to record participant leave")
	}
	if res.RowsAffected == 0 {
		return nil, app_error.NotFound("participant not found")
	}
	return r.FindParticipant(ctx, conferenceID, userID)
}

// FindSummary returns (nil, nil) when no summary exists yet.
func (r *ConferenceRepo) FindSummary(ctx context.Context, conferenceID string) (*entity.ConferenceSummary, *app_error.AppError) {
	var s entity.ConferenceSummary
	err := r.AppState.DB.WithContext(ctx).Where("conference_id = ?", conferenceID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, dbError(err, "failed to fetch summary")
	}
	return &s, nil
}

func (r *ConferenceRepo) UpsertAutoSummary(ctx context.Context, conferenceID, text string, date time.Time) (*entity.ConferenceSummary, *app_error.AppError) {
	return r.upsertSummary(ctx, conferenceID, "auto_summary", text, date)
}

func (r *ConferenceRepo) UpsertManualSummary(ctx context.Context, conferenceID, text string, date time.Time) (*entity.ConferenceSummary, *app_error.AppError) {
	return r.upsertSummary(ctx, conferenceID, "manual_summary", text, date)
}

func (r *ConferenceRepo) upsertSummary(ctx context.Context, conferenceID, column, text string, date time.Time) (*entity.ConferenceSummary, *app_error.AppError) {
	s := entity.ConferenceSummary{ConferenceID: conferenceID, Date: date}
	if column == "auto_summary" {
		s.AutoSummary = &text
	} else {
		s.ManualSummary = &text
	}

	err := r.AppState.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conference_id"}},
		DoUpdates: clause.Assignments(map[string]any{column: text, "updated_at": time.Now()}),
	}).Create(&s).Error
	if err != nil {
		return nil, dbError(err, "failed to save summary")
	}

	return r.FindSummary(ctx, conferenceID)
}
