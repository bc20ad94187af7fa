package conference_dto

import (
	"time"

	"github.com/xenn00/conference-system/internal/entity"
)

type ParticipantResponse struct {
	ConferenceID string     `json:"conference_id"`
	UserID       string     `json:"user_id"`
	IsMuted      bool       `json:"is_muted"`
	IsVideoOff   bool       `json:"is_video_off"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at"`
}

type ConferenceResponse struct {
	ID           string                `json:"id"`
	Title        *string               `json:"title"`
	ChatID       *string               `json:"chat_id"`
	CreatedBy    string                `json:"created_by"`
	Link         string                `json:"link"`
	IsActive     bool                  `json:"is_active"`
	StartedAt    time.Time             `json:"started_at"`
	EndedAt      *time.Time            `json:"ended_at"`
	Participants []ParticipantResponse `json:"participants"`
}

type MessageResponse struct {
	ID           string    `json:"id"`
	ConferenceID string    `json:"conference_id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	Type         string    `json:"type"`
	CreatedAt    time.Time `json:"created_at"`
}

// SummaryResponse marshals to {} when no summary exists.
type SummaryResponse struct {
	ConferenceID  string     `json:"conference_id,omitempty"`
	AutoSummary   *string    `json:"auto_summary,omitempty"`
	ManualSummary *string    `json:"manual_summary,omitempty"`
	Date          *time.Time `json:"date,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type AutoSummaryResponse struct {
	Generated bool             `json:"generated"`
	Message   string           `json:"message,omitempty"`
	Summary   *SummaryResponse `json:"summary,omitempty"`
}

func FromParticipant(p entity.Participant) ParticipantResponse {
	return ParticipantResponse{
		ConferenceID: p.ConferenceID,
		UserID:       p.UserID,
		IsMuted:      p.IsMuted,
		IsVideoOff:   p.IsVideoOff,
		JoinedAt:     p.JoinedAt,
		LeftAt:       p.LeftAt,
	}
}

func FromConference(c *entity.Conference) ConferenceResponse {
	participants := make([]ParticipantResponse, 0, len(c.Participants))
	for _, p := range c.Participants {
		participants = append(participants, FromParticipant(p))
	}
	return ConferenceResponse{
		ID:           c.ID,
		Title:        c.Title,
		ChatID:       c.ChatID,
		CreatedBy:    c.CreatedBy,
		Link:         c.Link,
		IsActive:     c.IsActive,
		StartedAt:    c.StartedAt,
		EndedAt:      c.EndedAt,
		Participants: participants,
	}
}

func FromMessage(m entity.ConferenceMessage) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		ConferenceID: m.ConferenceID,
		UserID:       m.UserID,
		Content:      m.Content,
		Type:         m.Type,
		CreatedAt:    m.CreatedAt,
	}
}

func FromSummary(s *entity.ConferenceSummary) SummaryResponse {
	if s == nil {
		return SummaryResponse{}
	}
	date, updated := s.Date, s.UpdatedAt
	return SummaryResponse{
		ConferenceID:  s.ConferenceID,
		AutoSummary:   s.AutoSummary,
		ManualSummary: s.ManualSummary,
		Date:          &date,
		UpdatedAt:     &updated,
	}
}
