package conference_handler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	"github.com/xenn00/conference-system/internal/queue"
	"github.com/xenn00/conference-system/internal/utils/types"
)

const broadcastTTL = time.Minute

// Broadcasts are best effort: the REST write already succeeded, so an
// enqueue failure is logged and never turned into an error response.
func (h *ConferenceHandler) enqueue(ctx context.Context, job queue.Job) {
	if h.Producer == nil {
		return
	}
	if err := h.Producer.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		log.Error().Err(err).Str("job_type", job.Type).Msg("Failed to enqueue job")
		return
	}
	log.Debug().Str("job_id", job.ID).Str("job_type", job.Type).Msg("Broadcast job enqueued successfully")
}

func (h *ConferenceHandler) broadcastMessage(ctx context.Context, resp *conference_dto.MessageResponse) {
	h.enqueue(ctx, queue.NewJob(queue.JobBroadcastMessage, &types.BroadcastMessagePayload{
		MessageID:    resp.ID,
		ConferenceID: resp.ConferenceID,
		UserID:       resp.UserID,
		Content:      resp.Content,
		Type:         resp.Type,
		CreatedAt:    resp.CreatedAt,
	}, 1, broadcastTTL))
}

func (h *ConferenceHandler) broadcastParticipantUpdated(ctx context.Context, resp *conference_dto.ParticipantResponse) {
	h.enqueue(ctx, queue.NewJob(queue.JobBroadcastParticipant, &types.BroadcastParticipantPayload{
		ConferenceID: resp.ConferenceID,
		UserID:       resp.UserID,
		IsMuted:      resp.IsMuted,
		IsVideoOff:   resp.IsVideoOff,
		JoinedAt:     resp.JoinedAt,
		LeftAt:       resp.LeftAt,
	}, 1, broadcastTTL))
}

// conference-ended outranks chat traffic.
func (h *ConferenceHandler) broadcastConferenceEnded(ctx context.Context, resp *conference_dto.ConferenceResponse) {
	h.enqueue(ctx, queue.NewJob(queue.JobBroadcastEnded, &types.BroadcastConferenceEndedPayload{
		ConferenceID: resp.ID,
		CreatedBy:    resp.CreatedBy,
		IsActive:     resp.IsActive,
		EndedAt:      resp.EndedAt,
	}, 0, 5*broadcastTTL))
}
