package websocket

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/metrics"
	"github.com/xenn00/conference-system/internal/signal"
)

const (
	defaultCleanupInterval   = 1 * time.Minute
	defaultInactiveThreshold = 2 * time.Minute

	plainRoomPrefix = "room:"
)

// PlainRoom is the registry key of a join-room subscription. Plain rooms
// never alias a conference room and carry no membership notifications.
func PlainRoom(roomID string) string {
	return plainRoomPrefix + roomID
}

func isPlainRoom(roomID string) bool {
	return strings.HasPrefix(roomID, plainRoomPrefix)
}

// Hub is the room registry. One lock guards the room map, the reverse
// index and the user index so they never disagree.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{} // roomID -> clients
	clientRooms map[*Client]map[string]struct{} // client -> roomIDs
	userClients map[string]map[*Client]struct{} // userID -> clients

	// Hub lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	stats   HubStats
	statsMu sync.Mutex

	inactiveThreshold time.Duration
}

type HubStats struct {
	TotalRooms       int       `json:"total_rooms"`
	TotalClients     int       `json:"total_clients"`
	TotalConnections int64     `json:"total_connections"`
	MessageSent      int64     `json:"message_sent"`
	LastReset        time.Time `json:"last_reset"`
}

type RoomStats struct {
	RoomID            string `json:"room_id"`
	Exists            bool   `json:"exists"`
	TotalConnections  int    `json:"total_connections"`
	ActiveConnections int    `json:"active_connections"`
	UniqueUsers       int    `json:"unique_users"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:             make(map[string]map[*Client]struct{}),
		clientRooms:       make(map[*Client]map[string]struct{}),
		userClients:       make(map[string]map[*Client]struct{}),
		ctx:               ctx,
		cancel:            cancel,
		stats:             HubStats{LastReset: time.Now()},
		inactiveThreshold: defaultInactiveThreshold,
	}
}

// Register indexes a freshly connected client by user.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if h.userClients[client.UserID] == nil {
		h.userClients[client.UserID] = make(map[*Client]struct{})
	}
	h.userClients[client.UserID][client] = struct{}{}
	h.mu.Unlock()

	h.updateStats(func(stats *HubStats) {
		stats.TotalConnections++
	})
	metrics.SignalingConnections.Inc()

	log.Info().Str("clientID", client.ID).Str("userID", client.UserID).Msg("ws: client registered")
}

// Join adds client to room and reports whether it was newly added.
func (h *Hub) Join(roomID string, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	if _, ok := h.rooms[roomID][client]; ok {
		return false
	}
	h.rooms[roomID][client] = struct{}{}

	if h.clientRooms[client] == nil {
		h.clientRooms[client] = make(map[string]struct{})
	}
	h.clientRooms[client][roomID] = struct{}{}
	metrics.SignalingRooms.Set(float64(len(h.rooms)))

	log.Info().Str("roomID", roomID).Str("clientID", client.ID).Str("userID", client.UserID).Int("roomSize", len(h.rooms[roomID])).Msg("ws: client joined room")
	return true
}

// Leave removes client from room and reports whether it was a member.
func (h *Hub) Leave(roomID string, client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(roomID, client)
}

func (h *Hub) leaveLocked(roomID string, client *Client) bool {
	clients, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, roomID)
	}
	if joined := h.clientRooms[client]; joined != nil {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(h.clientRooms, client)
		}
	}
	metrics.SignalingRooms.Set(float64(len(h.rooms)))

	log.Info().Str("roomID", roomID).Str("clientID", client.ID).Str("userID", client.UserID).Msg("ws: client left room")
	return true
}

// Disconnect removes client from every room and from the user index, then
// tells the remaining members of each conference room that the user left,
// unless another channel of the same user is still in that room. It returns
// the rooms the client was in.
func (h *Hub) Disconnect(client *Client) []string {
	h.mu.Lock()
	var rooms []string
	for roomID := range h.clientRooms[client] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		h.leaveLocked(roomID, client)
	}

	registered := false
	if set, ok := h.userClients[client.UserID]; ok {
		if _, ok := set[client]; ok {
			registered = true
			delete(set, client)
		}
		if len(set) == 0 {
			delete(h.userClients, client.UserID)
		}
	}
	h.mu.Unlock()

	if registered {
		metrics.SignalingConnections.Dec()
	}

	for _, roomID := range rooms {
		if isPlainRoom(roomID) || h.IsUserOnlineInRoom(roomID, client.UserID) {
			continue
		}
		data, err := signal.Encode(signal.UserLeft{Membership: signal.Membership{ConferenceID: roomID, UserID: client.UserID}})
		if err != nil {
			log.Error().Err(err).Str("roomID", roomID).Msg("ws: failed to encode user-left")
			continue
		}
		h.BroadcastToRoom(roomID, data)
	}

	if registered || len(rooms) > 0 {
		log.Info().Str("clientID", client.ID).Str("userID", client.UserID).Int("rooms", len(rooms)).Msg("ws: client disconnected")
	}
	return rooms
}

// BroadcastToRoom sends data to every client in a room.
func (h *Hub) BroadcastToRoom(roomID string, data []byte) int {
	return h.BroadcastExcept(roomID, nil, data)
}

// BroadcastExcept sends data to every client in a room except sender.
func (h *Hub) BroadcastExcept(roomID string, sender *Client, data []byte) int {
	// Get snapshot of clients (minimize lock time)
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		if client == sender {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	return h.deliver(targets, data)
}

// SendToUser delivers data to userID's channels, restricted to roomID when
// it is non-empty. It returns the number of channels reached.
func (h *Hub) SendToUser(roomID, userID string, data []byte) int {
	h.mu.RLock()
	var targets []*Client
	if roomID != "" {
		for client := range h.rooms[roomID] {
			if client.UserID == userID {
				targets = append(targets, client)
			}
		}
	} else {
		for client := range h.userClients[userID] {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	return h.deliver(targets, data)
}

func (h *Hub) deliver(targets []*Client, data []byte) int {
	sent := 0
	for _, client := range targets {
		if client.SendMessage(data) {
			sent++
		}
	}
	if sent > 0 {
		h.updateStats(func(stats *HubStats) {
			stats.MessageSent += int64(sent)
		})
	}
	return sent
}

// Utility methods

// InRoom reports whether client is subscribed to room.
func (h *Hub) InRoom(roomID string, client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][client]
	return ok
}

// RoomsOf returns the rooms client is subscribed to.
func (h *Hub) RoomsOf(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.clientRooms[client]))
	for roomID := range h.clientRooms[client] {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// GetRoomClients return all active clients in a room
func (h *Hub) GetRoomClients(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var clients []*Client
	for client := range h.rooms[roomID] {
		if client.IsClientActive() {
			clients = append(clients, client)
		}
	}
	return clients
}

// GetUserClients returns all active clients for a user
func (h *Hub) GetUserClients(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var activeClients []*Client
	for client := range h.userClients[userID] {
		if client.IsClientActive() {
			activeClients = append(activeClients, client)
		}
	}
	return activeClients
}

// IsUserOnlineInRoom checks if a user has any active connections in a room
func (h *Hub) IsUserOnlineInRoom(roomID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		if client.UserID == userID && client.IsClientActive() {
			return true
		}
	}
	return false
}

func (h *Hub) GetRoomStats(roomID string) RoomStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := RoomStats{RoomID: roomID}
	clients, ok := h.rooms[roomID]
	if !ok {
		return stats
	}

	uniqueUsers := make(map[string]struct{})
	for client := range clients {
		if client.IsClientActive() {
			stats.ActiveConnections++
			uniqueUsers[client.UserID] = struct{}{}
		}
	}
	stats.Exists = true
	stats.TotalConnections = len(clients)
	stats.UniqueUsers = len(uniqueUsers)
	return stats
}

// GetHubStats returns overall hub statistics
func (h *Hub) GetHubStats() HubStats {
	h.mu.RLock()
	rooms := len(h.rooms)
	clients := 0
	for _, set := range h.userClients {
		for client := range set {
			if client.IsClientActive() {
				clients++
			}
		}
	}
	h.mu.RUnlock()

	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	h.stats.TotalRooms = rooms
	h.stats.TotalClients = clients
	return h.stats
}

func (h *Hub) updateStats(fn func(*HubStats)) {
	h.statsMu.Lock()
	fn(&h.stats)
	h.statsMu.Unlock()
}

// Run closes clients that stopped answering pings until the hub is closed.
func (h *Hub) Run(interval time.Duration) {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.performCleanup(time.Now())
		}
	}
}

func (h *Hub) performCleanup(now time.Time) int {
	var toRemove []*Client

	h.mu.RLock()
	for _, clients := range h.userClients {
		for client := range clients {
			if !client.IsClientActive() || now.Sub(client.GetLastSeen()) > h.inactiveThreshold {
				toRemove = append(toRemove, client)
			}
		}
	}
	h.mu.RUnlock()

	for _, client := range toRemove {
		log.Info().Str("clientID", client.ID).Str("userID", client.UserID).Msg("ws: cleaning up inactive client")
		client.Close()
	}

	log.Debug().Int("cleaned", len(toRemove)).Msg("ws: cleanup routine completed")
	return len(toRemove)
}

// Close gracefully shuts down the hub
func (h *Hub) Close() {
	log.Info().Msg("ws: shutting down hub")
	h.cancel()

	h.mu.RLock()
	var allClients []*Client
	for _, clients := range h.userClients {
		for client := range clients {
			allClients = append(allClients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range allClients {
		client.Close()
	}

	log.Info().Int("clients", len(allClients)).Msg("ws: hub shutdown completed")
}
