package hub_handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	app_error "github.com/xenn00/conference-system/internal/errors"
	"github.com/xenn00/conference-system/internal/handlers"
	"github.com/xenn00/conference-system/internal/signal"
	"github.com/xenn00/conference-system/internal/websocket"
)

type HubHandler struct {
	Hub *websocket.Hub
}

func NewHubHandler(hub *websocket.Hub) *HubHandler {
	return &HubHandler{
		Hub: hub,
	}
}

type ClientInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Rooms       []string  `json:"rooms"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

func (h *HubHandler) clientInfo(client *websocket.Client) ClientInfo {
	return ClientInfo{
		ID:          client.ID,
		UserID:      client.UserID,
		Rooms:       h.Hub.RoomsOf(client),
		ConnectedAt: client.ConnectedAt,
		LastSeen:    client.GetLastSeen(),
	}
}

func (h *HubHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	handlers.WriteResponse(w, r, http.StatusOK, "healthy", map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "conference-signaling",
	})
}

func (h *HubHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	handlers.WriteResponse(w, r, http.StatusOK, "get websocket stats", h.Hub.GetHubStats())
	return nil
}

// Room handlers

func (h *HubHandler) HandleGetRoomStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	stats := h.Hub.GetRoomStats(chi.URLParam(r, "roomId"))
	handlers.WriteResponse(w, r, http.StatusOK, "get websocket room stats", stats)
	return nil
}

func (h *HubHandler) HandleGetRoomClients(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	roomID := chi.URLParam(r, "roomId")

	clientList := []ClientInfo{}
	for _, client := range h.Hub.GetRoomClients(roomID) {
		clientList = append(clientList, h.clientInfo(client))
	}

	handlers.WriteResponse(w, r, http.StatusOK, "successfully get rooms client", map[string]any{
		"room_id": roomID,
		"count":   len(clientList),
		"clients": clientList,
	})
	return nil
}

type removalRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// HandleKickUser closes every channel the user has open in the room. The
// remaining members receive user-left through the normal disconnect path.
func (h *HubHandler) HandleKickUser(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	roomID := chi.URLParam(r, "roomId")

	var payload removalRequest
	if appErr := handlers.DecodeJSON(r, &payload); appErr != nil {
		return appErr
	}
	if payload.UserID == "" {
		return app_error.BadRequest("user_id is required", "request-body-kick-user")
	}

	kicked := 0
	for _, client := range h.Hub.GetRoomClients(roomID) {
		if client.UserID != payload.UserID {
			continue
		}
		notify(client, http.StatusForbidden, "removed from conference: "+payload.Reason)
		client.Close()
		kicked++
	}

	handlers.WriteResponse(w, r, http.StatusOK, "successfully kick users", map[string]any{
		"status":         "success",
		"kicked_clients": kicked,
		"user_id":        payload.UserID,
		"room_id":        roomID,
	})
	return nil
}

// User handlers

func (h *HubHandler) HandleGetUserStatus(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID := chi.URLParam(r, "userId")
	roomID := r.URL.Query().Get("roomId")

	clients := h.Hub.GetUserClients(userID)
	isOnline := len(clients) > 0
	if roomID != "" {
		isOnline = h.Hub.IsUserOnlineInRoom(roomID, userID)
	}

	handlers.WriteResponse(w, r, http.StatusOK, "successful get user status", map[string]any{
		"user_id":        userID,
		"online":         isOnline,
		"active_clients": len(clients),
		"room_id":        roomID,
	})
	return nil
}

func (h *HubHandler) HandleGetUserConnections(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID := chi.URLParam(r, "userId")

	connections := []ClientInfo{}
	for _, client := range h.Hub.GetUserClients(userID) {
		connections = append(connections, h.clientInfo(client))
	}

	handlers.WriteResponse(w, r, http.StatusOK, "successfully get user connection", map[string]any{
		"user_id":     userID,
		"count":       len(connections),
		"connections": connections,
	})
	return nil
}

func (h *HubHandler) HandleDisconnectUser(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID := chi.URLParam(r, "userId")

	var payload removalRequest
	if appErr := handlers.DecodeJSON(r, &payload); appErr != nil {
		return appErr
	}

	disconnected := 0
	for _, client := range h.Hub.GetUserClients(userID) {
		notify(client, http.StatusGone, "connection closed: "+payload.Reason)
		client.Close()
		disconnected++
	}

	handlers.WriteResponse(w, r, http.StatusOK, "successfully disconnect user", map[string]any{
		"status":               "success",
		"disconnected_clients": disconnected,
		"user_id":              userID,
		"reason":               payload.Reason,
	})
	return nil
}

func notify(client *websocket.Client, code int, message string) {
	if data, err := signal.Encode(signal.Error{Code: code, Message: message}); err == nil {
		client.SendMessage(data)
	}
}
