package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	PriorityQueueKey = "priority_queue"
	DelayedKey       = "priority_queue_delayed"
	DLQKey           = "priority_queue_dlq"
)

const (
	JobBroadcastMessage     = "broadcast_conference_message"
	JobBroadcastParticipant = "broadcast_participant_updated"
	JobBroadcastEnded       = "broadcast_conference_ended"
	JobParticipantLeft      = "participant_left"
)

type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	Retry     int             `json:"retry"`
	MaxRetry  int             `json:"max_retry"`
	ErrorMsg  string          `json:"error_msg,omitempty"`
	CreatedAt int64           `json:"created_at"`
	ExpireAt  int64           `json:"expired_at"`
}

// NewJob builds a job with a fresh id. Lower priority values run first.
func NewJob(jobType string, payload any, priority int, ttl time.Duration) Job {
	now := time.Now()
	return Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   MustMarshal(payload),
		Priority:  priority,
		MaxRetry:  3,
		CreatedAt: now.Unix(),
		ExpireAt:  now.Add(ttl).Unix(),
	}
}

func (j Job) Expired(now time.Time) bool {
	return j.ExpireAt > 0 && now.Unix() > j.ExpireAt
}

func MustMarshal(payload any) json.RawMessage {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	return b
}
