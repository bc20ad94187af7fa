package websocket

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WebSocketHandler struct {
	hub           *Hub
	relay         *Relay
	authenticator AuthenticatorFunc
	upgrader      websocket.Upgrader

	MaxConnections   int
	ConnectionsPerIP int

	active atomic.Int64
	ipMu   sync.Mutex
	perIP  map[string]int
}

func NewWebSocketHandler(hub *Hub, relay *Relay, authenticator AuthenticatorFunc) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		relay:         relay,
		authenticator: authenticator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origin is enforced by the CORS layer in front of the router
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		MaxConnections:   10000,
		ConnectionsPerIP: 20,
		perIP:            make(map[string]int),
	}
}

// ServeHTTP authenticates, upgrades and starts the channel pumps.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.authenticateConnection(r)
	if err != nil {
		log.Warn().Err(err).Str("ip", getClientIP(r)).Msg("ws: authentication failed")
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	ip := getClientIP(r)
	if !h.acquire(ip) {
		log.Warn().Str("ip", ip).Str("userID", userID).Msg("ws: connection limit reached")
		http.Error(w, "too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.release(ip)
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	client := NewClient(conn, userID, ip)
	h.hub.Register(client)
	client.Start(h.relay.HandleMessage, func(c *Client) {
		h.relay.HandleClose(c)
		h.release(c.IP)
	})
}

func (h *WebSocketHandler) authenticateConnection(r *http.Request) (string, error) {
	if h.authenticator == nil {
		return "", &AuthError{Message: "no authenticator configured"}
	}
	return h.authenticator(r)
}

func (h *WebSocketHandler) acquire(ip string) bool {
	if h.MaxConnections > 0 && h.active.Load() >= int64(h.MaxConnections) {
		return false
	}

	h.ipMu.Lock()
	defer h.ipMu.Unlock()
	if h.ConnectionsPerIP > 0 && h.perIP[ip] >= h.ConnectionsPerIP {
		return false
	}
	h.perIP[ip]++
	h.active.Add(1)
	return true
}

func (h *WebSocketHandler) release(ip string) {
	h.ipMu.Lock()
	h.perIP[ip]--
	if h.perIP[ip] <= 0 {
		delete(h.perIP, ip)
	}
	h.ipMu.Unlock()
	h.active.Add(-1)
}

// ActiveConnections returns the number of upgraded channels.
func (h *WebSocketHandler) ActiveConnections() int64 {
	return h.active.Load()
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	return ip
}
