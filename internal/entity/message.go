package entity

import "time"

const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

// ConferenceMessage is stored in Mongo when configured and in SQL otherwise,
// so it carries both tag sets.
type ConferenceMessage struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	ConferenceID string    `gorm:"not null;index:idx_conf_msg_created,priority:1;size:36" bson:"conferenceId" json:"conference_id"`
	UserID       string    `gorm:"not null;size:64" bson:"userId" json:"user_id"`
	Content      string    `gorm:"not null" bson:"content" json:"content"`
	Type         string    `gorm:"not null;default:text;size:16" bson:"type" json:"type"`
	CreatedAt    time.Time `gorm:"not null;index:idx_conf_msg_created,priority:2" bson:"createdAt" json:"created_at"`
}

func (ConferenceMessage) TableName() string { return "conference_messages" }
