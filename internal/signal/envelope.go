// Package signal defines the conference signaling protocol shared by the
// relay server and the peer connection manager.
//
// Every frame on the wire is an Envelope: {"event": ..., "data": ..., "timestamp": ...}.
// Decode turns an envelope into one of the typed variants below so callers can
// dispatch with a type switch instead of string-keyed handlers.
package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

type Event string

const (
	EventJoinRoom          Event = "join-room"
	EventConferenceJoin    Event = "conference-join"
	EventConferenceLeave   Event = "conference-leave"
	EventOffer             Event = "conference-offer"
	EventAnswer            Event = "conference-answer"
	EventICECandidate      Event = "conference-ice-candidate"
	EventReaction          Event = "conference-reaction"
	EventUserJoined        Event = "user-joined"
	EventUserLeft          Event = "user-left"
	EventConferenceMessage Event = "conference-message"
	EventParticipantUpdate Event = "participant-updated"
	EventConferenceEnded   Event = "conference-ended"
	EventError             Event = "error"
)

var (
	ErrMalformed    = errors.New("signal: malformed envelope")
	ErrUnknownEvent = errors.New("signal: unknown event")
)

type Envelope struct {
	Event     Event           `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Signal is implemented by every typed envelope payload.
type Signal interface {
	Event() Event
}

// Targeted is implemented by the point-to-point negotiation variants.
type Targeted interface {
	Signal
	Target() string
	Room() string
	// FromSender returns a copy stamped with the authenticated sender id.
	FromSender(userID string) Targeted
}

type validator interface {
	validate() error
}

// Encode wraps sig into an envelope and serializes it.
func Encode(sig Signal) ([]byte, error) {
	env, err := Wrap(sig)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(env)
}

// Wrap builds an envelope around sig without serializing the outer frame.
func Wrap(sig Signal) (Envelope, error) {
	data, err := codec.Marshal(sig)
	if err != nil {
		return Envelope{}, fmt.Errorf("signal: encode %s: %w", sig.Event(), err)
	}
	return Envelope{Event: sig.Event(), Data: data, Timestamp: time.Now().Unix()}, nil
}

// Raw builds an envelope around an arbitrary payload, used for server
// notices whose payload is a persisted record.
func Raw(event Event, payload any) ([]byte, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("signal: encode %s: %w", event, err)
	}
	return codec.Marshal(Envelope{Event: event, Data: data, Timestamp: time.Now().Unix()})
}

// Decode parses a raw frame into its typed variant.
func Decode(raw []byte) (Signal, error) {
	var env Envelope
	if err := codec.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env.Decode()
}

func (e Envelope) Decode() (Signal, error) {
	var sig Signal
	switch e.Event {
	case EventJoinRoom:
		sig = &JoinRoom{}
	case EventConferenceJoin:
		sig = &ConferenceJoin{}
	case EventConferenceLeave:
		sig = &ConferenceLeave{}
	case EventOffer:
		sig = &Offer{}
	case EventAnswer:
		sig = &Answer{}
	case EventICECandidate:
		sig = &Candidate{}
	case EventReaction:
		sig = &Reaction{}
	case EventUserJoined:
		sig = &UserJoined{}
	case EventUserLeft:
		sig = &UserLeft{}
	case EventError:
		sig = &Error{}
	case EventConferenceMessage, EventParticipantUpdate, EventConferenceEnded:
		return &Notice{Kind: e.Event, Data: e.Data}, nil
	case "":
		return nil, fmt.Errorf("%w: missing event", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Event)
	}

	if len(e.Data) == 0 {
		return nil, fmt.Errorf("%w: %s without data", ErrMalformed, e.Event)
	}
	if err := codec.Unmarshal(e.Data, sig); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, e.Event, err)
	}
	if v, ok := sig.(validator); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, e.Event, err)
		}
	}
	return sig, nil
}
