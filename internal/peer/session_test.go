package peer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	"github.com/xenn00/conference-system/internal/signal"
)

type fakePC struct {
	mu          sync.Mutex
	offerErr    error
	remote      []signal.SessionDescription
	candidates  []signal.ICECandidate
	tracks      []LocalTrack
	video       LocalTrack
	closed      int
	onCandidate func(signal.ICECandidate)
	onFailed    func(error)
}

func (f *fakePC) LocalOffer() (signal.SessionDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return signal.SessionDescription{}, f.offerErr
	}
	return signal.SessionDescription{Type: "offer", SDP: "v=0 offer"}, nil
}

func (f *fakePC) LocalAnswer() (signal.SessionDescription, error) {
	return signal.SessionDescription{Type: "answer", SDP: "v=0 answer"}, nil
}

func (f *fakePC) SetRemoteDescription(desc signal.SessionDescription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = append(f.remote, desc)
	return nil
}

func (f *fakePC) AddICECandidate(c signal.ICECandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakePC) AddTrack(track LocalTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, track)
	if track.Kind() == KindVideo {
		f.video = track
	}
	return nil
}

func (f *fakePC) ReplaceVideoTrack(track LocalTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = track
	return nil
}

func (f *fakePC) OnICECandidate(fn func(signal.ICECandidate)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCandidate = fn
}

func (f *fakePC) OnFailed(fn func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFailed = fn
}

func (f *fakePC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakePC) snapshot() (remote int, candidates []signal.ICECandidate, video LocalTrack, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.remote), append([]signal.ICECandidate(nil), f.candidates...), f.video, f.closed
}

func (f *fakePC) emitCandidate(c signal.ICECandidate) {
	f.mu.Lock()
	fn := f.onCandidate
	f.mu.Unlock()
	fn(c)
}

type fakeTrack struct {
	id   string
	kind TrackKind

	mu      sync.Mutex
	enabled bool
	ended   chan struct{}
	once    sync.Once
}

func newFakeTrack(id string, kind TrackKind) *fakeTrack {
	return &fakeTrack{id: id, kind: kind, enabled: true, ended: make(chan struct{})}
}

func (t *fakeTrack) ID() string      { return t.id }
func (t *fakeTrack) Kind() TrackKind { return t.kind }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) Stop()                  { t.once.Do(func() { close(t.ended) }) }
func (t *fakeTrack) Ended() <-chan struct{} { return t.ended }

func (t *fakeTrack) stopped() bool {
	select {
	case <-t.ended:
		return true
	default:
		return false
	}
}

type recordingSignaler struct {
	mu   sync.Mutex
	sent []signal.Signal
}

func (r *recordingSignaler) Send(sig signal.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sig)
	return nil
}

func (r *recordingSignaler) events() []signal.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]signal.Event, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.Event())
	}
	return out
}

type stateChange struct {
	user  string
	state State
	err   error
}

type stateRecorder struct {
	mu      sync.Mutex
	changes []stateChange
}

func (r *stateRecorder) record(user string, st State, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, stateChange{user, st, err})
}

func (r *stateRecorder) failure(user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.changes {
		if c.user == user && c.state == StateClosed && c.err != nil {
			return c.err
		}
	}
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns map[string]*fakePC
	dials map[string]int
	fail  map[string]error
	gate  map[string]chan struct{}
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		conns: make(map[string]*fakePC),
		dials: make(map[string]int),
		fail:  make(map[string]error),
		gate:  make(map[string]chan struct{}),
	}
}

func (d *fakeDialer) dial(remoteUserID string) (PeerConnection, error) {
	d.mu.Lock()
	gate := d.gate[remoteUserID]
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	pc := &fakePC{offerErr: d.fail[remoteUserID]}
	d.conns[remoteUserID] = pc
	d.dials[remoteUserID]++
	return pc, nil
}

func (d *fakeDialer) dialCount(remoteUserID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[remoteUserID]
}

func (d *fakeDialer) conn(remoteUserID string) *fakePC {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[remoteUserID]
}

type fixture struct {
	session  *Session
	signaler *recordingSignaler
	dialer   *fakeDialer
	states   *stateRecorder
	audio    *fakeTrack
	camera   *fakeTrack
}

func newFixture(t *testing.T, userID string) *fixture {
	t.Helper()
	f := &fixture{
		signaler: &recordingSignaler{},
		dialer:   newFakeDialer(),
		states:   &stateRecorder{},
		audio:    newFakeTrack(userID+"-audio", KindAudio),
		camera:   newFakeTrack(userID+"-camera", KindVideo),
	}
	f.session = NewSession(Config{
		ConferenceID: "conf-1",
		UserID:       userID,
		Signaler:     f.signaler,
		Dial:         f.dialer.dial,
		Media:        LocalMedia{Audio: f.audio, Video: f.camera},
		Observer:     Observer{PeerStateChanged: f.states.record},
	})
	t.Cleanup(f.session.Close)
	return f
}

func joined(userID string) *signal.UserJoined {
	return &signal.UserJoined{Membership: signal.Membership{ConferenceID: "conf-1", UserID: userID}}
}

func waitState(t *testing.T, s *Session, userID string, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.PeerState(userID) == want },
		2*time.Second, 5*time.Millisecond, "peer %s never reached %s", userID, want)
}

func TestUserJoined_StartsOffer(t *testing.T) {
	f := newFixture(t, "alice")

	f.session.HandleSignal(joined("bob"))
	f.session.HandleSignal(joined("alice"))

	require.Eventually(t, func() bool { return len(f.signaler.events()) == 1 }, time.Second, 5*time.Millisecond)
	offer := f.signaler.sent[0].(signal.Offer)
	assert.Equal(t, "bob", offer.TargetID)
	assert.Equal(t, "conf-1", offer.ConferenceID)
	assert.Equal(t, StateNegotiating, f.session.PeerState("bob"))
	assert.Equal(t, StateAbsent, f.session.PeerState("alice"))

	// both local tracks are attached at creation
	pc := f.dialer.conn("bob")
	assert.Len(t, pc.tracks, 2)
}

func TestCandidatesBeforeAnswer_AreFlushedOnce(t *testing.T) {
	f := newFixture(t, "alice")
	f.session.HandleSignal(joined("bob"))
	require.Eventually(t, func() bool { return len(f.signaler.events()) == 1 }, time.Second, 5*time.Millisecond)

	pc := f.dialer.conn("bob")
	early := signal.ICECandidate{Candidate: "candidate:1 1 udp 1 10.0.0.2 5000 typ host"}
	f.session.HandleSignal(&signal.Candidate{Candidate: early, TargetID: "alice", FromID: "bob"})
	f.session.HandleSignal(&signal.Candidate{Candidate: early, TargetID: "alice", FromID: "bob"})

	time.Sleep(20 * time.Millisecond)
	_, applied, _, _ := pc.snapshot()
	assert.Empty(t, applied)

	f.session.HandleSignal(&signal.Answer{Answer: signal.SessionDescription{Type: "answer", SDP: "v=0"}, TargetID: "alice", FromID: "bob"})
	waitState(t, f.session, "bob", StateConnected)

	late := signal.ICECandidate{Candidate: "candidate:2 1 udp 1 10.0.0.3 5000 typ host"}
	f.session.HandleSignal(&signal.Candidate{Candidate: late, TargetID: "alice", FromID: "bob"})

	require.Eventually(t, func() bool {
		_, applied, _, _ := pc.snapshot()
		return len(applied) == 3
	}, time.Second, 5*time.Millisecond)

	// a second answer does not replay the buffer
	f.session.HandleSignal(&signal.Answer{Answer: signal.SessionDescription{Type: "answer", SDP: "v=0"}, TargetID: "alice", FromID: "bob"})
	require.Eventually(t, func() bool {
		remote, _, _, _ := pc.snapshot()
		return remote == 2
	}, time.Second, 5*time.Millisecond)
	_, applied, _, _ = pc.snapshot()
	assert.Len(t, applied, 3)
	assert.Equal(t, early, applied[0])
	assert.Equal(t, late, applied[2])
}

func TestCandidatesBeforeOffer_AreKeptForTheAnswerer(t *testing.T) {
	f := newFixture(t, "bob")

	c := signal.ICECandidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host"}
	f.session.HandleSignal(&signal.Candidate{Candidate: c, TargetID: "bob", FromID: "alice"})
	assert.Equal(t, StateAbsent, f.session.PeerState("alice"))

	f.session.HandleSignal(&signal.Offer{Offer: signal.SessionDescription{Type: "offer", SDP: "v=0"}, TargetID: "bob", FromID: "alice"})
	waitState(t, f.session, "alice", StateConnected)

	_, applied, _, _ := f.dialer.conn("alice").snapshot()
	assert.Equal(t, []signal.ICECandidate{c}, applied)
	assert.Equal(t, []signal.Event{signal.EventAnswer}, f.signaler.events())
}

func TestLocalCandidatesFollowTheOffer(t *testing.T) {
	f := newFixture(t, "alice")
	f.session.HandleSignal(joined("bob"))
	require.Eventually(t, func() bool { return len(f.signaler.events()) == 1 }, time.Second, 5*time.Millisecond)

	f.dialer.conn("bob").emitCandidate(signal.ICECandidate{Candidate: "candidate:9"})
	require.Eventually(t, func() bool { return len(f.signaler.events()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []signal.Event{signal.EventOffer, signal.EventICECandidate}, f.signaler.events())
	assert.Equal(t, "bob", f.signaler.sent[1].(signal.Candidate).TargetID)
}

// wireRelay routes targeted envelopes between sessions through the codec,
// stamping the sender the way the relay does.
type wireRelay struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

type wireSignaler struct {
	relay  *wireRelay
	userID string
}

func (w wireSignaler) Send(sig signal.Signal) error {
	targeted, ok := sig.(signal.Targeted)
	if !ok {
		return nil
	}
	data, err := signal.Encode(targeted.FromSender(w.userID))
	if err != nil {
		return err
	}
	decoded, err := signal.Decode(data)
	if err != nil {
		return err
	}

	w.relay.mu.Lock()
	target := w.relay.sessions[targeted.Target()]
	w.relay.mu.Unlock()
	if target != nil {
		target.HandleSignal(decoded)
	}
	return nil
}

func TestNegotiation_BothSidesConnect(t *testing.T) {
	relay := &wireRelay{sessions: make(map[string]*Session)}
	dialers := map[string]*fakeDialer{"alice": newFakeDialer(), "bob": newFakeDialer()}

	for _, user := range []string{"alice", "bob"} {
		s := NewSession(Config{
			ConferenceID: "conf-1",
			UserID:       user,
			Signaler:     wireSignaler{relay: relay, userID: user},
			Dial:         dialers[user].dial,
		})
		t.Cleanup(s.Close)
		relay.sessions[user] = s
	}

	// bob joins; the relay tells alice
	relay.sessions["alice"].HandleSignal(joined("bob"))

	waitState(t, relay.sessions["alice"], "bob", StateConnected)
	waitState(t, relay.sessions["bob"], "alice", StateConnected)

	remote, _, _, _ := dialers["bob"].conn("alice").snapshot()
	assert.Equal(t, 1, remote)

	// alice leaves
	relay.sessions["bob"].HandleSignal(&signal.UserLeft{Membership: signal.Membership{ConferenceID: "conf-1", UserID: "alice"}})
	assert.Equal(t, StateAbsent, relay.sessions["bob"].PeerState("alice"))
	_, _, _, closed := dialers["bob"].conn("alice").snapshot()
	assert.Equal(t, 1, closed)
}

func TestRejoin_ReplacesExistingPeer(t *testing.T) {
	f := newFixture(t, "alice")
	f.session.HandleSignal(joined("bob"))
	f.session.HandleSignal(&signal.Answer{Answer: signal.SessionDescription{Type: "answer", SDP: "v=0"}, TargetID: "alice", FromID: "bob"})
	waitState(t, f.session, "bob", StateConnected)
	first := f.dialer.conn("bob")

	// bob reconnected on a new channel before the old one was cleaned up
	f.session.HandleSignal(joined("bob"))
	require.Eventually(t, func() bool { return len(f.signaler.events()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []signal.Event{signal.EventOffer, signal.EventOffer}, f.signaler.events())
	assert.Equal(t, 2, f.dialer.dialCount("bob"))
	_, _, _, closed := first.snapshot()
	assert.Equal(t, 1, closed)
	assert.NotSame(t, first, f.dialer.conn("bob"))
	assert.Equal(t, StateNegotiating, f.session.PeerState("bob"))

	f.session.HandleSignal(&signal.Answer{Answer: signal.SessionDescription{Type: "answer", SDP: "v=0"}, TargetID: "alice", FromID: "bob"})
	waitState(t, f.session, "bob", StateConnected)
	remote, _, _, _ := f.dialer.conn("bob").snapshot()
	assert.Equal(t, 1, remote)
}

func TestSlowDial_DoesNotBlockOtherPeers(t *testing.T) {
	f := newFixture(t, "alice")
	gate := make(chan struct{})
	f.dialer.gate["slow"] = gate

	go f.session.HandleSignal(joined("slow"))
	time.Sleep(20 * time.Millisecond)

	f.session.HandleSignal(joined("bob"))
	require.Eventually(t, func() bool { return len(f.signaler.events()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "bob", f.signaler.sent[0].(signal.Offer).TargetID)
	assert.Equal(t, []string{"bob"}, f.session.Peers())
	assert.Equal(t, StateAbsent, f.session.PeerState("slow"))

	close(gate)
	waitState(t, f.session, "slow", StateNegotiating)
	assert.Equal(t, []string{"bob", "slow"}, f.session.Peers())
}

func TestFailingPeer_IsIsolated(t *testing.T) {
	f := newFixture(t, "alice")
	f.dialer.fail["carol"] = errors.New("sdp exploded")

	f.session.HandleSignal(joined("bob"))
	f.session.HandleSignal(joined("carol"))

	require.Eventually(t, func() bool { return f.states.failure("carol") != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorContains(t, f.states.failure("carol"), "sdp exploded")
	assert.Equal(t, StateAbsent, f.session.PeerState("carol"))
	_, _, _, closed := f.dialer.conn("carol").snapshot()
	assert.Equal(t, 1, closed)

	f.session.HandleSignal(&signal.Answer{Answer: signal.SessionDescription{Type: "answer", SDP: "v=0"}, TargetID: "alice", FromID: "bob"})
	waitState(t, f.session, "bob", StateConnected)
	assert.Equal(t, []string{"bob"}, f.session.Peers())
}

func TestConnectionFailure_ClosesOnlyThatPeer(t *testing.T) {
	f := newFixture(t, "alice")
	f.session.HandleSignal(joined("bob"))
	f.session.HandleSignal(joined("carol"))
	waitState(t, f.session, "bob", StateNegotiating)
	waitState(t, f.session, "carol", StateNegotiating)

	pc := f.dialer.conn("bob")
	pc.mu.Lock()
	onFailed := pc.onFailed
	pc.mu.Unlock()
	onFailed(errors.New("ice failed"))

	assert.Equal(t, StateAbsent, f.session.PeerState("bob"))
	assert.Equal(t, StateNegotiating, f.session.PeerState("carol"))
	assert.ErrorContains(t, f.states.failure("bob"), "ice failed")
}

func TestScreenShare_ReplacesOnAllPeers(t *testing.T) {
	f := newFixture(t, "alice")
	for _, user := range []string{"bob", "carol"} {
		f.session.HandleSignal(joined(user))
		waitState(t, f.session, user, StateNegotiating)
	}

	screen := newFakeTrack("screen", KindVideo)
	require.NoError(t, f.session.StartScreenShare(screen))
	assert.True(t, f.session.ScreenSharing())
	for _, user := range []string{"bob", "carol"} {
		_, _, video, _ := f.dialer.conn(user).snapshot()
		assert.Same(t, screen, video, user)
	}

	// a peer added mid-share sends the screen from the start
	f.session.HandleSignal(joined("dave"))
	waitState(t, f.session, "dave", StateNegotiating)
	_, _, video, _ := f.dialer.conn("dave").snapshot()
	assert.Same(t, screen, video)

	require.NoError(t, f.session.StopScreenShare())
	assert.False(t, f.session.ScreenSharing())
	assert.True(t, screen.stopped())
	for _, user := range []string{"bob", "carol", "dave"} {
		_, _, video, _ := f.dialer.conn(user).snapshot()
		assert.Same(t, f.camera, video, user)
	}
}

func TestScreenShare_SourceEndRevertsToCamera(t *testing.T) {
	f := newFixture(t, "alice")
	f.session.HandleSignal(joined("bob"))
	waitState(t, f.session, "bob", StateNegotiating)

	screen := newFakeTrack("screen", KindVideo)
	require.NoError(t, f.session.StartScreenShare(screen))

	screen.Stop()
	require.Eventually(t, func() bool { return !f.session.ScreenSharing() }, time.Second, 5*time.Millisecond)
	_, _, video, _ := f.dialer.conn("bob").snapshot()
	assert.Same(t, f.camera, video)
}

type recordingMetadata struct {
	mu   sync.Mutex
	reqs []conference_dto.UpdateParticipantRequest
}

func (m *recordingMetadata) UpdateParticipant(_ context.Context, conferenceID string, req conference_dto.UpdateParticipantRequest) (*conference_dto.ParticipantResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return &conference_dto.ParticipantResponse{ConferenceID: conferenceID}, nil
}

func TestMuteAndVideoOff_MirrorFlags(t *testing.T) {
	f := newFixture(t, "alice")
	meta := &recordingMetadata{}
	f.session.metadata = meta

	require.NoError(t, f.session.SetMuted(context.Background(), true))
	require.NoError(t, f.session.SetVideoOff(context.Background(), true))
	assert.False(t, f.audio.Enabled())
	assert.False(t, f.camera.Enabled())

	require.NoError(t, f.session.SetMuted(context.Background(), false))
	assert.True(t, f.audio.Enabled())

	require.Len(t, meta.reqs, 3)
	assert.True(t, *meta.reqs[0].IsMuted)
	assert.Nil(t, meta.reqs[0].IsVideoOff)
	assert.True(t, *meta.reqs[1].IsVideoOff)
	assert.False(t, *meta.reqs[2].IsMuted)
	assert.Empty(t, f.signaler.events())
}

func TestReactions_ExpireAfterTTL(t *testing.T) {
	f := newFixture(t, "alice")
	now := time.Now()
	f.session.now = func() time.Time { return now }

	require.NoError(t, f.session.SendReaction("👍"))
	f.session.HandleSignal(&signal.Reaction{ConferenceID: "conf-1", UserID: "bob", Reaction: "🎉"})
	assert.Equal(t, map[string]string{"alice": "👍", "bob": "🎉"}, f.session.Reactions())
	assert.Equal(t, []signal.Event{signal.EventReaction}, f.signaler.events())

	now = now.Add(ReactionTTL)
	assert.Empty(t, f.session.Reactions())
}

func TestClose_IsIdempotentAndStopsEverything(t *testing.T) {
	f := newFixture(t, "alice")
	f.session.HandleSignal(joined("bob"))
	waitState(t, f.session, "bob", StateNegotiating)

	require.NoError(t, f.session.Leave())
	f.session.Close()
	f.session.ClosePeer("bob")

	_, _, _, closed := f.dialer.conn("bob").snapshot()
	assert.Equal(t, 1, closed)
	assert.True(t, f.audio.stopped())
	assert.True(t, f.camera.stopped())
	assert.Empty(t, f.session.Peers())
	assert.Contains(t, f.signaler.events(), signal.EventConferenceLeave)

	assert.ErrorIs(t, f.session.Join(), ErrSessionClosed)
	f.session.HandleSignal(joined("carol"))
	assert.Nil(t, f.dialer.conn("carol"))
}
