package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // 1 MB
	sendBufferSize = 256
)

// Client is one authenticated signaling channel. Send is never closed;
// shutdown is signalled through the client context.
type Client struct {
	ID          string
	UserID      string
	IP          string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	lastSeen  atomic.Int64

	mu          sync.Mutex
	conferences map[string]struct{}
}

func NewClient(conn *websocket.Conn, userID, ip string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ID:          uuid.New().String(),
		UserID:      userID,
		IP:          ip,
		Conn:        conn,
		Send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		conferences: make(map[string]struct{}),
	}
	c.touch()
	return c
}

// Start runs the pumps. onMessage is called sequentially from the read
// goroutine; onClose runs once after the read loop exits.
func (c *Client) Start(onMessage func(*Client, []byte), onClose func(*Client)) {
	go c.writePump()
	go c.readPump(onMessage, onClose)
}

// SendMessage queues data without blocking. A full buffer closes the client.
func (c *Client) SendMessage(data []byte) bool {
	if !c.IsClientActive() {
		return false
	}

	select {
	case c.Send <- data:
		return true
	case <-c.ctx.Done():
		return false
	default:
		metrics.SlowConsumers.Inc()
		log.Warn().Str("clientID", c.ID).Str("userID", c.UserID).Msg("ws: slow consumer, closing channel")
		c.Close()
		return false
	}
}

func (c *Client) Close() {
	// writePump sends the close frame and releases the connection.
	c.closeOnce.Do(c.cancel)
}

func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) IsClientActive() bool {
	return c.ctx.Err() == nil
}

func (c *Client) GetLastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) trackConference(conferenceID string) {
	c.mu.Lock()
	c.conferences[conferenceID] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) untrackConference(conferenceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.conferences[conferenceID]; !ok {
		return false
	}
	delete(c.conferences, conferenceID)
	return true
}

// Conferences returns the conferences this channel announced itself in.
func (c *Client) Conferences() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.conferences))
	for id := range c.conferences {
		out = append(out, id)
	}
	return out
}

// writePump: take data from c.Send and send to socket + ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("clientID", c.ID).Msg("ws: write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// flush writes frames already queued when the client was closed, so a
// notice sent right before Close still reaches the peer.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.Send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// readPump: dispatch inbound frames + handle pong for keep-alive
func (c *Client) readPump(onMessage func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose(c)
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("clientID", c.ID).Msg("ws: unexpected close")
			}
			return
		}
		c.touch()
		if onMessage != nil {
			onMessage(c, data)
		}
	}
}
