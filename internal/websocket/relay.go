package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/internal/metrics"
	"github.com/xenn00/conference-system/internal/signal"
)

const guardTimeout = 5 * time.Second

// ConferenceGuard decides whether a conference accepts new members.
type ConferenceGuard interface {
	CheckJoin(ctx context.Context, conferenceID string) error
}

// PresenceRecorder persists that a user is no longer in a conference.
type PresenceRecorder interface {
	RecordLeft(ctx context.Context, conferenceID, userID string) error
}

// Relay dispatches decoded envelopes from one channel. Each channel's read
// goroutine calls HandleMessage sequentially, so per-sender order holds.
type Relay struct {
	hub      *Hub
	guard    ConferenceGuard
	presence PresenceRecorder
}

func NewRelay(hub *Hub, guard ConferenceGuard, presence PresenceRecorder) *Relay {
	return &Relay{hub: hub, guard: guard, presence: presence}
}

func (r *Relay) HandleMessage(c *Client, raw []byte) {
	sig, err := signal.Decode(raw)
	if err != nil {
		metrics.EnvelopesDropped.WithLabelValues("malformed").Inc()
		log.Debug().Err(err).Str("clientID", c.ID).Msg("ws: rejected frame")
		r.sendError(c, http.StatusBadRequest, err.Error())
		return
	}

	switch m := sig.(type) {
	case *signal.JoinRoom:
		r.hub.Join(PlainRoom(m.RoomID), c)

	case *signal.ConferenceJoin:
		r.handleJoin(c, m.ConferenceID)

	case *signal.ConferenceLeave:
		r.handleLeave(c, m.ConferenceID)

	case signal.Targeted:
		r.forward(c, m)

	case *signal.Reaction:
		if !r.hub.InRoom(m.ConferenceID, c) {
			metrics.EnvelopesDropped.WithLabelValues("rejected").Inc()
			r.sendError(c, http.StatusForbidden, "not a member of this conference")
			return
		}
		m.UserID = c.UserID
		r.broadcast(c, m.ConferenceID, m)

	default:
		metrics.EnvelopesDropped.WithLabelValues("rejected").Inc()
		r.sendError(c, http.StatusBadRequest, "event "+string(sig.Event())+" is not accepted from clients")
	}
}

// HandleClose runs once when a channel's read loop ends.
func (r *Relay) HandleClose(c *Client) {
	r.hub.Disconnect(c)
	for _, conferenceID := range c.Conferences() {
		c.untrackConference(conferenceID)
		r.recordLeft(conferenceID, c.UserID)
	}
}

func (r *Relay) handleJoin(c *Client, conferenceID string) {
	if r.guard != nil {
		ctx, cancel := context.WithTimeout(c.Context(), guardTimeout)
		err := r.guard.CheckJoin(ctx, conferenceID)
		cancel()
		if err != nil {
			metrics.EnvelopesDropped.WithLabelValues("rejected").Inc()
			code := app_error.CodeOf(err)
			if code == 0 {
				code = http.StatusInternalServerError
			}
			r.sendError(c, code, err.Error())
			return
		}
	}

	c.trackConference(conferenceID)
	if !r.hub.Join(conferenceID, c) {
		return
	}
	r.broadcast(c, conferenceID, signal.UserJoined{Membership: signal.Membership{ConferenceID: conferenceID, UserID: c.UserID}})
}

func (r *Relay) handleLeave(c *Client, conferenceID string) {
	tracked := c.untrackConference(conferenceID)
	if r.hub.Leave(conferenceID, c) && !r.hub.IsUserOnlineInRoom(conferenceID, c.UserID) {
		r.broadcast(c, conferenceID, signal.UserLeft{Membership: signal.Membership{ConferenceID: conferenceID, UserID: c.UserID}})
	}
	if tracked {
		r.recordLeft(conferenceID, c.UserID)
	}
}

func (r *Relay) forward(c *Client, m signal.Targeted) {
	if room := m.Room(); room != "" && !r.hub.InRoom(room, c) {
		metrics.EnvelopesDropped.WithLabelValues("rejected").Inc()
		r.sendError(c, http.StatusForbidden, "not a member of this conference")
		return
	}

	stamped := m.FromSender(c.UserID)
	data, err := signal.Encode(stamped)
	if err != nil {
		log.Error().Err(err).Str("clientID", c.ID).Msg("ws: failed to encode envelope")
		return
	}

	if r.hub.SendToUser(stamped.Room(), stamped.Target(), data) == 0 {
		// target already left; negotiation messages are not queued
		metrics.EnvelopesDropped.WithLabelValues("stale_target").Inc()
		log.Debug().Str("event", string(stamped.Event())).Str("from", c.UserID).Str("target", stamped.Target()).Msg("ws: target not connected, dropping")
		return
	}
	metrics.EnvelopesRelayed.WithLabelValues(string(stamped.Event())).Inc()
}

func (r *Relay) broadcast(sender *Client, roomID string, sig signal.Signal) {
	data, err := signal.Encode(sig)
	if err != nil {
		log.Error().Err(err).Str("roomID", roomID).Msg("ws: failed to encode envelope")
		return
	}
	if r.hub.BroadcastExcept(roomID, sender, data) > 0 {
		metrics.EnvelopesRelayed.WithLabelValues(string(sig.Event())).Inc()
	}
}

// recordLeft persists presence only when no other channel of the same user
// is still in the conference.
func (r *Relay) recordLeft(conferenceID, userID string) {
	if r.presence == nil || r.hub.IsUserOnlineInRoom(conferenceID, userID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), guardTimeout)
	defer cancel()
	if err := r.presence.RecordLeft(ctx, conferenceID, userID); err != nil {
		log.Error().Err(err).Str("conferenceID", conferenceID).Str("userID", userID).Msg("ws: failed to record leave")
	}
}

func (r *Relay) sendError(c *Client, code int, message string) {
	data, err := signal.Encode(signal.Error{Code: code, Message: message})
	if err != nil {
		return
	}
	c.SendMessage(data)
}
