package signal

import (
	"encoding/json"
	"errors"
)

// SessionDescription mirrors the browser's RTCSessionDescriptionInit.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// ICECandidate mirrors the browser's RTCIceCandidateInit.
type ICECandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

type Membership struct {
	ConferenceID string `json:"conferenceId"`
	UserID       string `json:"userId"`
}

func (m Membership) validate() error {
	if m.ConferenceID == "" {
		return errors.New("conferenceId is required")
	}
	return nil
}

// JoinRoom subscribes a channel to an arbitrary room without announcing it.
// On the wire its data is the bare room id string.
type JoinRoom struct {
	RoomID string
}

func (JoinRoom) Event() Event { return EventJoinRoom }

func (j JoinRoom) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.RoomID)
}

func (j *JoinRoom) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &j.RoomID); err == nil {
		return nil
	}
	var obj struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	j.RoomID = obj.RoomID
	return nil
}

func (j JoinRoom) validate() error {
	if j.RoomID == "" {
		return errors.New("room id is required")
	}
	return nil
}

type ConferenceJoin struct{ Membership }

func (ConferenceJoin) Event() Event { return EventConferenceJoin }

type ConferenceLeave struct{ Membership }

func (ConferenceLeave) Event() Event { return EventConferenceLeave }

type UserJoined struct{ Membership }

func (UserJoined) Event() Event { return EventUserJoined }

type UserLeft struct{ Membership }

func (UserLeft) Event() Event { return EventUserLeft }

type Offer struct {
	ConferenceID string             `json:"conferenceId,omitempty"`
	Offer        SessionDescription `json:"offer"`
	TargetID     string             `json:"targetId"`
	FromID       string             `json:"fromId"`
}

func (Offer) Event() Event     { return EventOffer }
func (o Offer) Target() string { return o.TargetID }
func (o Offer) Room() string   { return o.ConferenceID }

func (o Offer) FromSender(userID string) Targeted {
	o.FromID = userID
	return o
}

func (o Offer) validate() error {
	if o.TargetID == "" {
		return errors.New("targetId is required")
	}
	if o.Offer.SDP == "" {
		return errors.New("offer sdp is required")
	}
	return nil
}

type Answer struct {
	ConferenceID string             `json:"conferenceId,omitempty"`
	Answer       SessionDescription `json:"answer"`
	TargetID     string             `json:"targetId"`
	FromID       string             `json:"fromId"`
}

func (Answer) Event() Event     { return EventAnswer }
func (a Answer) Target() string { return a.TargetID }
func (a Answer) Room() string   { return a.ConferenceID }

func (a Answer) FromSender(userID string) Targeted {
	a.FromID = userID
	return a
}

func (a Answer) validate() error {
	if a.TargetID == "" {
		return errors.New("targetId is required")
	}
	if a.Answer.SDP == "" {
		return errors.New("answer sdp is required")
	}
	return nil
}

type Candidate struct {
	ConferenceID string       `json:"conferenceId,omitempty"`
	Candidate    ICECandidate `json:"candidate"`
	TargetID     string       `json:"targetId"`
	FromID       string       `json:"fromId"`
}

func (Candidate) Event() Event     { return EventICECandidate }
func (c Candidate) Target() string { return c.TargetID }
func (c Candidate) Room() string   { return c.ConferenceID }

func (c Candidate) FromSender(userID string) Targeted {
	c.FromID = userID
	return c
}

func (c Candidate) validate() error {
	if c.TargetID == "" {
		return errors.New("targetId is required")
	}
	return nil
}

type Reaction struct {
	ConferenceID string `json:"conferenceId"`
	UserID       string `json:"userId"`
	Reaction     string `json:"reaction"`
}

func (Reaction) Event() Event { return EventReaction }

func (r Reaction) validate() error {
	if r.ConferenceID == "" {
		return errors.New("conferenceId is required")
	}
	if r.Reaction == "" {
		return errors.New("reaction is required")
	}
	return nil
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (Error) Event() Event { return EventError }

// Notice carries server notifications whose payload is a persisted record
// (messages, participant flags, conference lifecycle).
type Notice struct {
	Kind Event
	Data json.RawMessage
}

func (n Notice) Event() Event { return n.Kind }

func (n Notice) MarshalJSON() ([]byte, error) {
	if len(n.Data) == 0 {
		return []byte("null"), nil
	}
	return n.Data, nil
}
