package conference_dto

type CreateConferenceRequest struct {
	ChatID *string `json:"chat_id" validate:"omitempty,min=1,max=64"`
	Title  *string `json:"title" validate:"omitempty,max=200"`
}

type UpdateParticipantRequest struct {
	IsMuted    *bool `json:"is_muted"`
	IsVideoOff *bool `json:"is_video_off"`
}

type PostMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
	Type    string `json:"type" validate:"omitempty,oneof=text system"`
}

type ManualSummaryRequest struct {
	ManualSummary string `json:"manual_summary" validate:"required,max=20000"`
}
