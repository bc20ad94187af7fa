package worker

import (
	"context"
	"fmt"

	"github.com/xenn00/conference-system/internal/queue"
	worker_handler "github.com/xenn00/conference-system/internal/worker/worker-handler"
)

func HandleJob(ctx context.Context, job queue.Job, wh *worker_handler.WorkerHandler) error {
	switch job.Type {
	case queue.JobBroadcastMessage:
		return wh.HandleBroadcastMessage(job.Payload)
	case queue.JobBroadcastParticipant:
		return wh.HandleBroadcastParticipantUpdated(job.Payload)
	case queue.JobBroadcastEnded:
		return wh.HandleBroadcastConferenceEnded(job.Payload)
	case queue.JobParticipantLeft:
		return wh.HandleParticipantLeft(ctx, job.Payload)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
