package conference_handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/internal/handlers"
	"github.com/xenn00/conference-system/internal/queue"
	conference_service "github.com/xenn00/conference-system/internal/use-case/conference-case"
)

type ConferenceHandler struct {
	Producer queue.Producer
	Validate *validator.Validate
	Service  conference_service.ConferenceServiceContract
}

func NewConferenceHandler(service conference_service.ConferenceServiceContract, producer queue.Producer) *ConferenceHandler {
	return &ConferenceHandler{
		Producer: producer,
		Validate: validator.New(),
		Service:  service,
	}
}

func (h *ConferenceHandler) validate(req any) *app_error.AppError {
	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "validation")
	}
	return nil
}

func (h *ConferenceHandler) CreateConference(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.AuthenticatedUser(r)
	if appErr != nil {
		return appErr
	}

	var req conference_dto.CreateConferenceRequest
	if appErr := handlers.DecodeJSON(r, &req); appErr != nil {
		return appErr
	}
	if appErr := h.validate(req); appErr != nil {
		return appErr
	}

	resp, appErr := h.Service.CreateConference(r.Context(), userID, req)
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusCreated, "conference created", *resp)
	return nil
}

func (h *ConferenceHandler) GetConference(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	resp, appErr := h.Service.GetConference(r.Context(), chi.URLParam(r, "conferenceId"))
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusOK, "get conference", *resp)
	return nil
}

// GetConferenceByLink is public: anyone holding the join link may look it up.
func (h *ConferenceHandler) GetConferenceByLink(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	resp, appErr := h.Service.GetConferenceByLink(r.Context(), chi.URLParam(r, "link"))
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusOK, "get conference by link", *resp)
	return nil
}

func (h *ConferenceHandler) JoinConference(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.AuthenticatedUser(r)
	if appErr != nil {
		return appErr
	}

	resp, appErr := h.Service.JoinConference(r.Context(), chi.URLParam(r, "conferenceId"), userID)
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusOK, "joined conference", *resp)
	return nil
}

func (h *ConferenceHandler) UpdateParticipant(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.AuthenticatedUser(r)
	if appErr != nil {
		return appErr
	}

	var req conference_dto.UpdateParticipantRequest
	if appErr := handlers.DecodeJSON(r, &req); appErr != nil {
		return appErr
	}
	if req.IsMuted == nil && req.IsVideoOff == nil {
		return app_error.BadRequest("is_muted or is_video_off is required", "validation")
	}

	resp, appErr := h.Service.UpdateParticipant(r.Context(), chi.URLParam(r, "conferenceId"), userID, req)
	if appErr != nil {
		return appErr
	}

	h.broadcastParticipantUpdated(r.Context(), resp)
	handlers.WriteResponse(w, r, http.StatusOK, "participant updated", *resp)
	return nil
}

func (h *ConferenceHandler) LeaveConference(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.AuthenticatedUser(r)
	if appErr != nil {
		return appErr
	}

	resp, appErr := h.Service.LeaveConference(r.Context(), chi.URLParam(r, "conferenceId"), userID)
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusOK, "left conference", *resp)
	return nil
}

func (h *ConferenceHandler) EndConference(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.AuthenticatedUser(r)
	if appErr != nil {
		return appErr
	}

	resp, changed, appErr := h.Service.EndConference(r.Context(), chi.URLParam(r, "conferenceId"), userID)
	if appErr != nil {
		return appErr
	}

	if changed {
		h.broadcastConferenceEnded(r.Context(), resp)
	}
	handlers.WriteResponse(w, r, http.StatusOK, "conference ended", *resp)
	return nil
}

func (h *ConferenceHandler) ListMessages(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	resp, appErr := h.Service.ListMessages(r.Context(), chi.URLParam(r, "conferenceId"))
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusOK, "get conference messages", resp)
	return nil
}

func (h *ConferenceHandler) PostMessage(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID, appErr := handlers.AuthenticatedUser(r)
	if appErr != nil {
		return appErr
	}

	var req conference_dto.PostMessageRequest
	if appErr := handlers.DecodeJSON(r, &req); appErr != nil {
		return appErr
	}
	if appErr := h.validate(req); appErr != nil {
		return appErr
	}

	resp, appErr := h.Service.PostMessage(r.Context(), chi.URLParam(r, "conferenceId"), userID, req)
	if appErr != nil {
		return appErr
	}

	h.broadcastMessage(r.Context(), resp)
	handlers.WriteResponse(w, r, http.StatusCreated, "message sent successfully", *resp)
	return nil
}

func (h *ConferenceHandler) GetSummary(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	resp, appErr := h.Service.GetSummary(r.Context(), chi.URLParam(r, "conferenceId"))
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusOK, "get conference summary", *resp)
	return nil
}

func (h *ConferenceHandler) GenerateAutoSummary(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	resp, appErr := h.Service.GenerateAutoSummary(r.Context(), chi.URLParam(r, "conferenceId"))
	if appErr != nil {
		return appErr
	}

	message := "summary generated"
	if !resp.Generated {
		message = resp.Message
	}
	handlers.WriteResponse(w, r, http.StatusOK, message, *resp)
	return nil
}

func (h *ConferenceHandler) EditManualSummary(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	var req conference_dto.ManualSummaryRequest
	if appErr := handlers.DecodeJSON(r, &req); appErr != nil {
		return appErr
	}
	if appErr := h.validate(req); appErr != nil {
		return appErr
	}

	resp, appErr := h.Service.EditManualSummary(r.Context(), chi.URLParam(r, "conferenceId"), req.ManualSummary)
	if appErr != nil {
		return appErr
	}

	handlers.WriteResponse(w, r, http.StatusOK, "summary updated", *resp)
	return nil
}
