package peer

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

type TrackKind string

const (
	KindAudio TrackKind = "audio"
	KindVideo TrackKind = "video"
)

// LocalTrack is an outgoing media track. A disabled track stays attached to
// every connection but sends nothing.
type LocalTrack interface {
	ID() string
	Kind() TrackKind
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
	// Ended is closed once the track stops, whether by Stop or by its source.
	Ended() <-chan struct{}
}

// LocalMedia is the set of tracks captured for the session. Either may be nil.
type LocalMedia struct {
	Audio LocalTrack
	Video LocalTrack
}

// SampleTrack feeds encoded samples into a pion static sample track.
type SampleTrack struct {
	kind  TrackKind
	track *webrtc.TrackLocalStaticSample

	mu      sync.RWMutex
	enabled bool
	ended   chan struct{}
	once    sync.Once
}

func NewSampleTrack(kind TrackKind, id, streamID string) (*SampleTrack, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
	if kind == KindVideo {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
	}

	track, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, err
	}
	return &SampleTrack{
		kind:    kind,
		track:   track,
		enabled: true,
		ended:   make(chan struct{}),
	}, nil
}

func (t *SampleTrack) ID() string      { return t.track.ID() }
func (t *SampleTrack) Kind() TrackKind { return t.kind }

func (t *SampleTrack) TrackLocal() webrtc.TrackLocal { return t.track }

func (t *SampleTrack) Enabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func (t *SampleTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *SampleTrack) Stop() {
	t.once.Do(func() { close(t.ended) })
}

func (t *SampleTrack) Ended() <-chan struct{} { return t.ended }

// WriteSample drops the sample while the track is disabled or stopped.
func (t *SampleTrack) WriteSample(data []byte, duration time.Duration) error {
	select {
	case <-t.ended:
		return nil
	default:
	}
	if !t.Enabled() {
		return nil
	}
	return t.track.WriteSample(media.Sample{Data: data, Duration: duration})
}
