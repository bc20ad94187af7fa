package worker_handler

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	"github.com/xenn00/conference-system/internal/signal"
	"github.com/xenn00/conference-system/internal/utils/types"
)

// Server notices reuse the REST shapes so clients decode one model.

func (wh *WorkerHandler) HandleBroadcastMessage(raw json.RawMessage) error {
	var payload types.BroadcastMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid broadcast payload: %w", err)
	}

	return wh.broadcast(payload.ConferenceID, signal.EventConferenceMessage, conference_dto.MessageResponse{
		ID:           payload.MessageID,
		ConferenceID: payload.ConferenceID,
		UserID:       payload.UserID,
		Content:      payload.Content,
		Type:         payload.Type,
		CreatedAt:    payload.CreatedAt,
	})
}

func (wh *WorkerHandler) HandleBroadcastParticipantUpdated(raw json.RawMessage) error {
	var payload types.BroadcastParticipantPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid broadcast payload: %w", err)
	}

	return wh.broadcast(payload.ConferenceID, signal.EventParticipantUpdate, conference_dto.ParticipantResponse{
		ConferenceID: payload.ConferenceID,
		UserID:       payload.UserID,
		IsMuted:      payload.IsMuted,
		IsVideoOff:   payload.IsVideoOff,
		JoinedAt:     payload.JoinedAt,
		LeftAt:       payload.LeftAt,
	})
}

func (wh *WorkerHandler) HandleBroadcastConferenceEnded(raw json.RawMessage) error {
	var payload types.BroadcastConferenceEndedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid broadcast payload: %w", err)
	}

	return wh.broadcast(payload.ConferenceID, signal.EventConferenceEnded, payload)
}

func (wh *WorkerHandler) broadcast(conferenceID string, event signal.Event, body any) error {
	if conferenceID == "" {
		return fmt.Errorf("broadcast %s without conference id", event)
	}

	data, err := signal.Raw(event, body)
	if err != nil {
		return err
	}

	// an empty room is not a failure: nobody is connected to hear it
	sent := wh.Ws.BroadcastToRoom(conferenceID, data)
	log.Debug().Str("conference_id", conferenceID).Str("event", string(event)).Int("recipients", sent).Msg("broadcast delivered")
	return nil
}
