package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/signal"
)

const (
	signalWriteWait = 10 * time.Second
	signalPongWait  = 60 * time.Second
)

// SignalClient is a Signaler over the relay's websocket endpoint.
type SignalClient struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// DialSignal connects to wsURL (for example ws://host:8080/ws) with the
// session token.
func DialSignal(ctx context.Context, wsURL, token string) (*SignalClient, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse signaling url: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial signaling: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial signaling: %w", err)
	}

	log.Info().Str("url", u.Redacted()).Msg("signaling connected")
	return &SignalClient{conn: conn}, nil
}

func (c *SignalClient) Send(sig signal.Signal) error {
	data, err := signal.Encode(sig)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(signalWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Listen reads envelopes until ctx is done or the connection drops. Frames
// that fail to decode are logged and skipped.
func (c *SignalClient) Listen(ctx context.Context, handle func(signal.Signal)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	_ = c.conn.SetReadDeadline(time.Now().Add(signalPongWait))
	c.conn.SetPingHandler(func(appData string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(signalPongWait))
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(signalWriteWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(signalPongWait))

		sig, err := signal.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("skipping undecodable signal")
			continue
		}
		handle(sig)
	}
}

func (c *SignalClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return err
}
