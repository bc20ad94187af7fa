package entity

import (
	"time"
)

type Conference struct {
	ID           string        `gorm:"primaryKey;size:36" json:"id"`
	Title        *string       `json:"title"`
	ChatID       *string       `gorm:"index" json:"chat_id"`
	CreatedBy    string        `gorm:"not null;index" json:"created_by"`
	Link         string        `gorm:"not null;uniqueIndex;size:64" json:"link"`
	IsActive     bool          `gorm:"not null;default:true" json:"is_active"`
	StartedAt    time.Time     `gorm:"not null" json:"started_at"`
	EndedAt      *time.Time    `json:"ended_at"`
	Participants []Participant `gorm:"foreignKey:ConferenceID" json:"participants,omitempty"`
}

func (Conference) TableName() string { return "conferences" }

type Participant struct {
	ConferenceID string     `gorm:"primaryKey;size:36" json:"conference_id"`
	UserID       string     `gorm:"primaryKey;size:64" json:"user_id"`
	IsMuted      bool       `gorm:"not null;default:false" json:"is_muted"`
	IsVideoOff   bool       `gorm:"not null;default:false" json:"is_video_off"`
	JoinedAt     time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt       *time.Time `json:"left_at"`
}

func (Participant) TableName() string { return "conference_participants" }

// Present reports whether the participant has not left.
func (p Participant) Present() bool { return p.LeftAt == nil }

type ConferenceSummary struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ConferenceID  string    `gorm:"not null;uniqueIndex;size:36" json:"conference_id"`
	AutoSummary   *string   `json:"auto_summary"`
	ManualSummary *string   `json:"manual_summary"`
	Date          time.Time `gorm:"not null" json:"date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (ConferenceSummary) TableName() string { return "conference_summaries" }
