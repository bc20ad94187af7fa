package peer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/signal"
)

type PionConfig struct {
	ICEServers []string
	// OnTrack receives every remote track. When nil the track is drained.
	OnTrack func(remoteUserID string, track *webrtc.TrackRemote)
}

// PionDialer returns a Dialer backed by pion/webrtc.
func PionDialer(cfg PionConfig) Dialer {
	api := webrtc.NewAPI()
	servers := []webrtc.ICEServer{}
	if len(cfg.ICEServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: cfg.ICEServers})
	}

	return func(remoteUserID string) (PeerConnection, error) {
		pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
		if err != nil {
			return nil, fmt.Errorf("new peer connection: %w", err)
		}

		conn := &pionConnection{pc: pc}
		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			log.Debug().Str("remote_user", remoteUserID).Str("state", state.String()).Msg("peer connection state changed")
			if state == webrtc.PeerConnectionStateFailed {
				conn.fail(errors.New("peer connection failed"))
			}
		})
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			log.Info().Str("remote_user", remoteUserID).Str("kind", track.Kind().String()).Str("codec", track.Codec().MimeType).Msg("remote track received")
			if cfg.OnTrack != nil {
				cfg.OnTrack(remoteUserID, track)
				return
			}
			for {
				if _, _, err := track.ReadRTP(); err != nil {
					return
				}
			}
		})
		return conn, nil
	}
}

type pionConnection struct {
	pc *webrtc.PeerConnection

	mu       sync.Mutex
	video    *webrtc.RTPSender
	onFailed func(error)
}

func (c *pionConnection) LocalOffer() (signal.SessionDescription, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return signal.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return signal.SessionDescription{}, err
	}
	return fromPionDescription(offer), nil
}

func (c *pionConnection) LocalAnswer() (signal.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return signal.SessionDescription{}, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return signal.SessionDescription{}, err
	}
	return fromPionDescription(answer), nil
}

func (c *pionConnection) SetRemoteDescription(desc signal.SessionDescription) error {
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (c *pionConnection) AddICECandidate(candidate signal.ICECandidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:        candidate.Candidate,
		SDPMid:           candidate.SDPMid,
		SDPMLineIndex:    candidate.SDPMLineIndex,
		UsernameFragment: candidate.UsernameFragment,
	})
}

func (c *pionConnection) AddTrack(track LocalTrack) error {
	local, err := trackLocal(track)
	if err != nil {
		return err
	}
	sender, err := c.pc.AddTrack(local)
	if err != nil {
		return err
	}

	// RTCP has to be read for interceptors to run.
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, readErr := sender.Read(rtcpBuf); readErr != nil {
				return
			}
		}
	}()

	if track.Kind() == KindVideo {
		c.mu.Lock()
		c.video = sender
		c.mu.Unlock()
	}
	return nil
}

func (c *pionConnection) ReplaceVideoTrack(track LocalTrack) error {
	c.mu.Lock()
	sender := c.video
	c.mu.Unlock()
	if sender == nil {
		return errors.New("peer: no video sender to replace")
	}

	if track == nil {
		return sender.ReplaceTrack(nil)
	}
	local, err := trackLocal(track)
	if err != nil {
		return err
	}
	return sender.ReplaceTrack(local)
}

func (c *pionConnection) OnICECandidate(fn func(signal.ICECandidate)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if candidate == nil {
			return
		}
		jsonCandidate := candidate.ToJSON()
		fn(signal.ICECandidate{
			Candidate:        jsonCandidate.Candidate,
			SDPMid:           jsonCandidate.SDPMid,
			SDPMLineIndex:    jsonCandidate.SDPMLineIndex,
			UsernameFragment: jsonCandidate.UsernameFragment,
		})
	})
}

func (c *pionConnection) OnFailed(fn func(error)) {
	c.mu.Lock()
	c.onFailed = fn
	c.mu.Unlock()
}

func (c *pionConnection) fail(err error) {
	c.mu.Lock()
	fn := c.onFailed
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (c *pionConnection) Close() error {
	return c.pc.Close()
}

func trackLocal(track LocalTrack) (webrtc.TrackLocal, error) {
	t, ok := track.(interface{ TrackLocal() webrtc.TrackLocal })
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedTrack, track)
	}
	return t.TrackLocal(), nil
}

func fromPionDescription(desc webrtc.SessionDescription) signal.SessionDescription {
	return signal.SessionDescription{Type: desc.Type.String(), SDP: desc.SDP}
}
