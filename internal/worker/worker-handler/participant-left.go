package worker_handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/utils/types"
)

func (wh *WorkerHandler) HandleParticipantLeft(ctx context.Context, raw json.RawMessage) error {
	var payload types.ParticipantLeftPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid participant left payload: %w", err)
	}

	// the user may have reconnected while the job waited in the queue
	if wh.Ws != nil && wh.Ws.IsUserOnlineInRoom(payload.ConferenceID, payload.UserID) {
		log.Debug().Str("conference_id", payload.ConferenceID).Str("user_id", payload.UserID).Msg("participant back online, skipping leave")
		return nil
	}
	if wh.Presence == nil {
		return fmt.Errorf("no presence store configured")
	}

	leftAt := payload.LeftAt
	if leftAt.IsZero() {
		leftAt = time.Now().UTC()
	}
	return wh.Presence.RecordLeftAt(ctx, payload.ConferenceID, payload.UserID, leftAt)
}
