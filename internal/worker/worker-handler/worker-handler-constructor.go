package worker_handler

import (
	"context"
	"time"

	"github.com/xenn00/conference-system/internal/websocket"
)

// PresenceStore persists that a user left a conference at a given time.
type PresenceStore interface {
	RecordLeftAt(ctx context.Context, conferenceID, userID string, at time.Time) error
}

type WorkerHandler struct {
	Ws       *websocket.Hub
	Presence PresenceStore
}

func NewWorkerHandler(ws *websocket.Hub, presence PresenceStore) *WorkerHandler {
	return &WorkerHandler{
		Ws:       ws,
		Presence: presence,
	}
}
