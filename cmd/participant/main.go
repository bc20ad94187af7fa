// Command participant joins a conference headless: it negotiates a media
// connection with every other member and sends a silent audio track.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/config"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	"github.com/xenn00/conference-system/internal/peer"
	sig "github.com/xenn00/conference-system/internal/signal"
)

// one 20ms Opus frame of silence
var opusSilence = []byte{0xf8, 0xff, 0xfe}

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "Conference API base url")
	wsURL := flag.String("ws", "ws://localhost:8080/ws", "Signaling endpoint")
	token := flag.String("token", os.Getenv("CONFSVC_TOKEN"), "Session token")
	link := flag.String("link", "", "Join token of an existing conference; a new one is created when empty")
	title := flag.String("title", "headless", "Title used when creating a conference")
	muted := flag.Bool("muted", false, "Join muted")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if *token == "" {
		log.Fatal().Msg("a session token is required (-token or CONFSVC_TOKEN)")
	}

	iceServers := []string{"stun:stun.l.google.com:19302"}
	if err := config.LoadConfig(); err == nil && len(config.Conf.RTC.ICEServers) > 0 {
		iceServers = config.Conf.RTC.ICEServers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := peer.NewAPIClient(*apiURL, *token)
	conference, err := resolveConference(ctx, api, *link, *title)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve conference")
	}

	participant, err := api.JoinConference(ctx, conference.ID)
	if err != nil {
		log.Fatal().Err(err).Str("conference_id", conference.ID).Msg("failed to join conference")
	}
	log.Info().Str("conference_id", conference.ID).Str("link", conference.Link).Str("user_id", participant.UserID).Msg("joined conference")

	audio, err := peer.NewSampleTrack(peer.KindAudio, "audio", participant.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create audio track")
	}
	video, err := peer.NewSampleTrack(peer.KindVideo, "video", participant.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create video track")
	}
	go feedSilence(ctx, audio)

	signaler, err := peer.DialSignal(ctx, *wsURL, *token)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect signaling")
	}
	defer signaler.Close()

	session := peer.NewSession(peer.Config{
		ConferenceID: conference.ID,
		UserID:       participant.UserID,
		Signaler:     signaler,
		Dial: peer.PionDialer(peer.PionConfig{
			ICEServers: iceServers,
			OnTrack:    drainTrack,
		}),
		Metadata: api,
		Media:    peer.LocalMedia{Audio: audio, Video: video},
		Observer: peer.Observer{
			PeerStateChanged: func(userID string, state peer.State, err error) {
				log.Info().Err(err).Str("remote_user", userID).Str("state", state.String()).Msg("peer state")
			},
			ReactionReceived: func(userID, reaction string) {
				log.Info().Str("remote_user", userID).Str("reaction", reaction).Msg("reaction")
			},
			Notice: func(n *sig.Notice) {
				log.Info().Str("event", string(n.Event())).RawJSON("data", n.Data).Msg("notice")
				if n.Event() == sig.EventConferenceEnded {
					stop()
				}
			},
		},
	})

	go func() {
		if err := signaler.Listen(ctx, session.HandleSignal); err != nil {
			log.Error().Err(err).Msg("signaling connection lost")
		}
		stop()
	}()

	if err := session.Join(); err != nil {
		log.Fatal().Err(err).Msg("failed to announce join")
	}
	if *muted {
		if err := session.SetMuted(ctx, true); err != nil {
			log.Warn().Err(err).Msg("failed to mirror mute flag")
		}
	}

	<-ctx.Done()
	log.Info().Msg("leaving conference...")

	if err := session.Leave(); err != nil {
		log.Warn().Err(err).Msg("failed to announce leave")
	}
	leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := api.LeaveConference(leaveCtx, conference.ID); err != nil {
		log.Warn().Err(err).Msg("failed to record leave")
	}
}

func resolveConference(ctx context.Context, api *peer.APIClient, link, title string) (*conference_dto.ConferenceResponse, error) {
	if link != "" {
		return api.GetConferenceByLink(ctx, link)
	}
	return api.CreateConference(ctx, conference_dto.CreateConferenceRequest{Title: &title})
}

func feedSilence(ctx context.Context, track *peer.SampleTrack) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-track.Ended():
			return
		case <-ticker.C:
			if err := track.WriteSample(opusSilence, 20*time.Millisecond); err != nil {
				log.Debug().Err(err).Msg("dropped audio sample")
			}
		}
	}
}

func drainTrack(remoteUserID string, track *webrtc.TrackRemote) {
	var packets int
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			log.Debug().Str("remote_user", remoteUserID).Int("packets", packets).Msg("remote track ended")
			return
		}
		packets++
	}
}
