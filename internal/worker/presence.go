package worker

import (
	"context"
	"time"

	"github.com/xenn00/conference-system/internal/queue"
	"github.com/xenn00/conference-system/internal/utils/types"
)

const participantLeftTTL = 10 * time.Minute

// QueuedPresence records leaves through the job queue so the signaling
// read loop never waits on the database.
type QueuedPresence struct {
	Producer queue.Producer
}

func (q QueuedPresence) RecordLeft(ctx context.Context, conferenceID, userID string) error {
	return q.Producer.Enqueue(ctx, queue.NewJob(queue.JobParticipantLeft, &types.ParticipantLeftPayload{
		ConferenceID: conferenceID,
		UserID:       userID,
		LeftAt:       time.Now().UTC(),
	}, 2, participantLeftTTL))
}
