package peer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	"github.com/xenn00/conference-system/internal/signal"
)

const (
	ReactionTTL = 3 * time.Second

	// candidates kept per sender while no connection exists for it yet
	maxEarlyCandidates = 64
)

// MetadataClient mirrors local participant flags to the metadata store.
type MetadataClient interface {
	UpdateParticipant(ctx context.Context, conferenceID string, req conference_dto.UpdateParticipantRequest) (*conference_dto.ParticipantResponse, error)
}

// Observer callbacks run on internal goroutines and must not block.
type Observer struct {
	PeerStateChanged func(userID string, state State, err error)
	ReactionReceived func(userID, reaction string)
	Notice           func(n *signal.Notice)
	ServerError      func(e *signal.Error)
}

type Config struct {
	ConferenceID string
	UserID       string
	Signaler     Signaler
	Dial         Dialer
	Metadata     MetadataClient
	Media        LocalMedia
	Observer     Observer
}

type reaction struct {
	value     string
	expiresAt time.Time
}

// Session is the client state of one conference view.
type Session struct {
	conferenceID string
	userID       string
	signaler     Signaler
	dial         Dialer
	metadata     MetadataClient
	observer     Observer
	now          func() time.Time

	mu        sync.Mutex
	peers     map[string]*remotePeer
	early     map[string][]signal.ICECandidate
	media     LocalMedia
	screen    LocalTrack
	reactions map[string]reaction
	closed    bool
	done      chan struct{}
}

func NewSession(cfg Config) *Session {
	return &Session{
		conferenceID: cfg.ConferenceID,
		userID:       cfg.UserID,
		signaler:     cfg.Signaler,
		dial:         cfg.Dial,
		metadata:     cfg.Metadata,
		observer:     cfg.Observer,
		now:          time.Now,
		peers:        make(map[string]*remotePeer),
		early:        make(map[string][]signal.ICECandidate),
		media:        cfg.Media,
		reactions:    make(map[string]reaction),
		done:         make(chan struct{}),
	}
}

func (s *Session) membership() signal.Membership {
	return signal.Membership{ConferenceID: s.conferenceID, UserID: s.userID}
}

// Join announces this participant. Members already in the room answer with
// offers once the relay fans out user-joined.
func (s *Session) Join() error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.signaler.Send(signal.ConferenceJoin{Membership: s.membership()})
}

// Leave announces the departure and releases every peer and local track.
func (s *Session) Leave() error {
	if s.isClosed() {
		return nil
	}
	err := s.signaler.Send(signal.ConferenceLeave{Membership: s.membership()})
	s.Close()
	return err
}

// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	peers := s.peers
	s.peers = make(map[string]*remotePeer)
	s.early = make(map[string][]signal.ICECandidate)
	screen := s.screen
	s.screen = nil
	media := s.media
	s.mu.Unlock()

	for _, p := range peers {
		if p.close() {
			s.notifyState(p.userID, StateClosed, nil)
		}
	}
	for _, track := range []LocalTrack{media.Audio, media.Video, screen} {
		if track != nil {
			track.Stop()
		}
	}
	log.Info().Str("conference_id", s.conferenceID).Int("peers", len(peers)).Msg("session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HandleSignal dispatches one envelope received from the relay.
func (s *Session) HandleSignal(sig signal.Signal) {
	if s.isClosed() {
		return
	}

	switch m := sig.(type) {
	case *signal.UserJoined:
		if m.ConferenceID != s.conferenceID || m.UserID == s.userID {
			return
		}
		s.startOffer(m.UserID)

	case *signal.UserLeft:
		if m.ConferenceID != s.conferenceID {
			return
		}
		s.ClosePeer(m.UserID)

	case *signal.Offer:
		if m.FromID == "" || m.FromID == s.userID {
			return
		}
		s.acceptOffer(m.FromID, m.Offer)

	case *signal.Answer:
		if m.FromID == "" {
			return
		}
		s.acceptAnswer(m.FromID, m.Answer)

	case *signal.Candidate:
		if m.FromID == "" {
			return
		}
		s.acceptCandidate(m.FromID, m.Candidate)

	case *signal.Reaction:
		if m.ConferenceID != s.conferenceID || m.UserID == "" {
			return
		}
		s.storeReaction(m.UserID, m.Reaction)
		if s.observer.ReactionReceived != nil {
			s.observer.ReactionReceived(m.UserID, m.Reaction)
		}

	case *signal.Notice:
		if s.observer.Notice != nil {
			s.observer.Notice(m)
		}

	case *signal.Error:
		log.Warn().Int("code", m.Code).Str("message", m.Message).Msg("relay reported an error")
		if s.observer.ServerError != nil {
			s.observer.ServerError(m)
		}

	default:
		log.Debug().Str("event", string(sig.Event())).Msg("ignoring signal")
	}
}

// startOffer runs the offerer path towards a newly joined member. A repeated
// user-joined means the member reconnected on a new channel, so any existing
// connection to it is replaced.
func (s *Session) startOffer(remoteUserID string) {
	p, created := s.ensurePeer(remoteUserID, true)
	if p == nil || !created {
		return
	}

	p.push(func() error {
		desc, err := p.pc.LocalOffer()
		if err != nil {
			return fmt.Errorf("create offer: %w", err)
		}
		return s.signaler.Send(signal.Offer{ConferenceID: s.conferenceID, Offer: desc, TargetID: remoteUserID})
	})
}

// acceptOffer runs the answerer path. An offer for an existing peer is
// applied on that peer's queue as a renegotiation.
func (s *Session) acceptOffer(remoteUserID string, offer signal.SessionDescription) {
	p, _ := s.ensurePeer(remoteUserID, false)
	if p == nil {
		return
	}

	p.push(func() error {
		if err := p.pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("apply offer: %w", err)
		}
		s.flushCandidates(p)

		desc, err := p.pc.LocalAnswer()
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := s.signaler.Send(signal.Answer{ConferenceID: s.conferenceID, Answer: desc, TargetID: remoteUserID}); err != nil {
			return err
		}
		s.transition(p, StateConnected)
		return nil
	})
}

func (s *Session) acceptAnswer(remoteUserID string, answer signal.SessionDescription) {
	p := s.peer(remoteUserID)
	if p == nil {
		log.Debug().Str("remote_user", remoteUserID).Msg("answer for unknown peer dropped")
		return
	}

	p.push(func() error {
		if err := p.pc.SetRemoteDescription(answer); err != nil {
			return fmt.Errorf("apply answer: %w", err)
		}
		s.flushCandidates(p)
		s.transition(p, StateConnected)
		return nil
	})
}

func (s *Session) acceptCandidate(remoteUserID string, candidate signal.ICECandidate) {
	s.mu.Lock()
	p := s.peers[remoteUserID]
	if p == nil {
		if len(s.early[remoteUserID]) < maxEarlyCandidates {
			s.early[remoteUserID] = append(s.early[remoteUserID], candidate)
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	p.push(func() error {
		if !p.remoteSet {
			p.pending = append(p.pending, candidate)
			return nil
		}
		s.applyCandidate(p, candidate)
		return nil
	})
}

// flushCandidates applies buffered candidates after the first remote
// description is set. Later calls are no-ops.
func (s *Session) flushCandidates(p *remotePeer) {
	if p.remoteSet {
		return
	}
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	for _, c := range pending {
		s.applyCandidate(p, c)
	}
}

// A rejected candidate is not fatal: other candidates may still pair.
func (s *Session) applyCandidate(p *remotePeer, c signal.ICECandidate) {
	if err := p.pc.AddICECandidate(c); err != nil {
		log.Warn().Err(err).Str("remote_user", p.userID).Msg("failed to add ice candidate")
	}
}

// ensurePeer returns the existing peer or dials a new one. With replace set
// an existing peer is closed and superseded by a fresh connection. Dialing
// happens outside s.mu.
func (s *Session) ensurePeer(remoteUserID string, replace bool) (*remotePeer, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false
	}
	if p, ok := s.peers[remoteUserID]; ok && !replace {
		s.mu.Unlock()
		return p, false
	}
	audio, video := s.media.Audio, s.outgoingVideoLocked()
	s.mu.Unlock()

	p, err := s.dialPeer(remoteUserID, audio, video)
	if err != nil {
		s.notifyState(remoteUserID, StateClosed, err)
		return nil, false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		p.close()
		return nil, false
	}
	previous, exists := s.peers[remoteUserID]
	if exists && !replace {
		// another dial for the same user won
		s.mu.Unlock()
		p.close()
		return previous, false
	}
	p.pending = s.early[remoteUserID]
	delete(s.early, remoteUserID)
	s.peers[remoteUserID] = p
	current := s.outgoingVideoLocked()
	s.mu.Unlock()

	if exists && previous.close() {
		log.Info().Str("remote_user", remoteUserID).Msg("replacing peer after rejoin")
		s.notifyState(remoteUserID, StateClosed, nil)
	}
	if current != video && current != nil {
		// screen share toggled while dialing
		if err := p.pc.ReplaceVideoTrack(current); err != nil {
			log.Warn().Err(err).Str("remote_user", remoteUserID).Msg("failed to switch video track")
		}
	}

	s.notifyState(remoteUserID, StateNegotiating, nil)
	go p.run(s.dropPeer)
	return p, true
}

func (s *Session) outgoingVideoLocked() LocalTrack {
	if s.screen != nil {
		return s.screen
	}
	return s.media.Video
}

func (s *Session) dialPeer(remoteUserID string, audio, video LocalTrack) (*remotePeer, error) {
	pc, err := s.dial(remoteUserID)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	for _, track := range []LocalTrack{audio, video} {
		if track == nil {
			continue
		}
		if err := pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
	}

	p := newRemotePeer(remoteUserID, pc)
	pc.OnICECandidate(func(c signal.ICECandidate) {
		// queued so candidates never overtake the offer or answer
		p.push(func() error {
			if err := s.signaler.Send(signal.Candidate{ConferenceID: s.conferenceID, Candidate: c, TargetID: remoteUserID}); err != nil {
				log.Warn().Err(err).Str("remote_user", remoteUserID).Msg("failed to send ice candidate")
			}
			return nil
		})
	})
	pc.OnFailed(func(err error) { s.dropPeer(p, err) })
	return p, nil
}

func (s *Session) peer(remoteUserID string) *remotePeer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peers[remoteUserID]
}

func (s *Session) transition(p *remotePeer, st State) {
	if p.setState(st) {
		s.notifyState(p.userID, st, nil)
	}
}

// dropPeer closes a failed peer without touching the others.
func (s *Session) dropPeer(p *remotePeer, err error) {
	s.mu.Lock()
	if s.peers[p.userID] == p {
		delete(s.peers, p.userID)
	}
	s.mu.Unlock()

	if p.close() {
		log.Warn().Err(err).Str("remote_user", p.userID).Msg("peer negotiation failed")
		s.notifyState(p.userID, StateClosed, err)
	}
}

// ClosePeer closes the connection to remoteUserID, if any. Idempotent.
func (s *Session) ClosePeer(remoteUserID string) {
	s.mu.Lock()
	p := s.peers[remoteUserID]
	delete(s.peers, remoteUserID)
	delete(s.early, remoteUserID)
	delete(s.reactions, remoteUserID)
	s.mu.Unlock()

	if p != nil && p.close() {
		s.notifyState(remoteUserID, StateClosed, nil)
	}
}

func (s *Session) notifyState(userID string, st State, err error) {
	if s.observer.PeerStateChanged != nil {
		s.observer.PeerStateChanged(userID, st, err)
	}
}

// PeerState reports StateAbsent for users with no connection.
func (s *Session) PeerState(remoteUserID string) State {
	if p := s.peer(remoteUserID); p != nil {
		return p.State()
	}
	return StateAbsent
}

func (s *Session) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.peers))
	for id := range s.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Session) activePeers() []*remotePeer {
	peers := make([]*remotePeer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// Media controls

// SetMuted toggles the audio track without renegotiation and mirrors the
// flag to the metadata store.
func (s *Session) SetMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	audio := s.media.Audio
	s.mu.Unlock()
	if audio != nil {
		audio.SetEnabled(!muted)
	}
	return s.mirror(ctx, conference_dto.UpdateParticipantRequest{IsMuted: &muted})
}

func (s *Session) SetVideoOff(ctx context.Context, off bool) error {
	s.mu.Lock()
	video := s.media.Video
	s.mu.Unlock()
	if video != nil {
		video.SetEnabled(!off)
	}
	return s.mirror(ctx, conference_dto.UpdateParticipantRequest{IsVideoOff: &off})
}

func (s *Session) mirror(ctx context.Context, req conference_dto.UpdateParticipantRequest) error {
	if s.metadata == nil {
		return nil
	}
	if _, err := s.metadata.UpdateParticipant(ctx, s.conferenceID, req); err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return nil
}

// StartScreenShare sends source instead of the camera on every peer. When
// source ends on its own the camera is restored.
func (s *Session) StartScreenShare(source LocalTrack) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	previous := s.screen
	s.screen = source
	peers := s.activePeers()
	s.mu.Unlock()

	if previous != nil && previous != source {
		previous.Stop()
	}

	err := replaceVideo(peers, source)
	go s.watchScreen(source)
	return err
}

func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	source := s.screen
	s.mu.Unlock()
	if source == nil {
		return nil
	}
	return s.revertScreen(source)
}

func (s *Session) ScreenSharing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen != nil
}

func (s *Session) watchScreen(source LocalTrack) {
	select {
	case <-source.Ended():
		if err := s.revertScreen(source); err != nil {
			log.Warn().Err(err).Msg("failed to restore camera after screen share ended")
		}
	case <-s.done:
	}
}

// revertScreen is the single path back to the camera track.
func (s *Session) revertScreen(source LocalTrack) error {
	s.mu.Lock()
	if s.closed || s.screen != source {
		s.mu.Unlock()
		return nil
	}
	s.screen = nil
	camera := s.media.Video
	peers := s.activePeers()
	s.mu.Unlock()

	source.Stop()
	return replaceVideo(peers, camera)
}

func replaceVideo(peers []*remotePeer, track LocalTrack) error {
	var errs []error
	for _, p := range peers {
		if p.State() == StateClosed {
			continue
		}
		if err := p.pc.ReplaceVideoTrack(track); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.userID, err))
		}
	}
	return errors.Join(errs...)
}

// Reactions

func (s *Session) SendReaction(value string) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.signaler.Send(signal.Reaction{ConferenceID: s.conferenceID, UserID: s.userID, Reaction: value}); err != nil {
		return err
	}
	// the relay does not echo to the sender
	s.storeReaction(s.userID, value)
	return nil
}

func (s *Session) storeReaction(userID, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactions[userID] = reaction{value: value, expiresAt: s.now().Add(ReactionTTL)}
}

// Reactions returns the reactions that have not expired yet, keyed by user.
func (s *Session) Reactions() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make(map[string]string, len(s.reactions))
	for userID, r := range s.reactions {
		if !now.Before(r.expiresAt) {
			delete(s.reactions, userID)
			continue
		}
		out[userID] = r.value
	}
	return out
}
