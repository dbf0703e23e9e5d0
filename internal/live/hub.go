// Package live streams gate activity to event dashboards over WebSocket.
// Connections are broadcast-only listeners grouped into per-event rooms; a
// successful gate scan is pushed to every dashboard watching that event.
package live

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/checkin"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// Message is the WebSocket message envelope.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub maintains event_id -> set of dashboard connections.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*client]struct{}
	logger *zap.Logger
}

// NewHub creates a gate feed hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{rooms: make(map[int64]map[*client]struct{}), logger: logger}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	if h.rooms[c.eventID] == nil {
		h.rooms[c.eventID] = make(map[*client]struct{})
	}
	h.rooms[c.eventID][c] = struct{}{}
	n := len(h.rooms[c.eventID])
	h.mu.Unlock()
	h.logger.Debug("dashboard connected", zap.Int64("event_id", c.eventID), zap.Int("watchers", n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.eventID]; ok {
		if _, present := room[c]; present {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.eventID)
		}
	}
	h.mu.Unlock()
}

// Broadcast pushes a message to every dashboard watching an event. A
// client whose send buffer is full is dropped rather than blocking the
// gate.
func (h *Hub) Broadcast(eventID int64, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			delete(h.rooms[eventID], c)
			close(c.send)
			h.logger.Warn("slow dashboard dropped", zap.Int64("event_id", eventID))
		}
	}
}

// AnnounceCheckIn broadcasts a successful gate scan to the event's
// dashboards.
func (h *Hub) AnnounceCheckIn(result *checkin.Result) {
	if result == nil || result.Event == nil {
		return
	}
	h.Broadcast(result.Event.ID, Message{Event: "check_in", Data: result})
}

// Watchers reports how many dashboards are connected for an event.
func (h *Hub) Watchers(eventID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
