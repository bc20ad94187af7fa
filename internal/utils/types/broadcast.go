package types

import "time"

// Job payloads enqueued by the REST surface and consumed by the worker.

type BroadcastMessagePayload struct {
	MessageID    string    `json:"message_id"`
	ConferenceID string    `json:"conference_id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

type BroadcastParticipantPayload struct {
	ConferenceID string     `json:"conference_id"`
	UserID       string     `json:"user_id"`
	IsMuted      bool       `json:"is_muted"`
	IsVideoOff   bool       `json:"is_video_off"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at"`
}

type BroadcastConferenceEndedPayload struct {
	ConferenceID string     `json:"id"`
	CreatedBy    string     `json:"created_by"`
	IsActive     bool       `json:"is_active"`
	EndedAt      *time.Time `json:"ended_at"`
}

type ParticipantLeftPayload struct {
	ConferenceID string    `json:"conference_id"`
	UserID       string    `json:"user_id"`
	LeftAt       time.Time `json:"left_at"`
}
