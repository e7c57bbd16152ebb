package api

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/carepulse/carepulse/internal/alerts"
	"github.com/carepulse/carepulse/internal/metrics"
)

// Hub fans fired alerts out to connected WebSocket clients
type Hub struct {
	mu     sync.RWMutex
	conns  map[*websocket.Conn]bool
	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		conns:  make(map[*websocket.Conn]bool),
		logger: logger,
	}
}

// Broadcast pushes an alert to every connected client
func (h *Hub) Broadcast(alert alerts.Alert) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteJSON(fiber.Map{"type": "alert", "alert": alert}); err != nil {
			h.logger.Warn("WebSocket write error", zap.Error(err))
		}
	}
	if len(conns) > 0 {
		metrics.RecordChannelSend("websocket")
	}
}

// Count reports the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
	metrics.Default().IncrementActiveConnections()
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	metrics.Default().DecrementActiveConnections()
}

// handle keeps the connection registered until the client disconnects
func (h *Hub) handle(c *websocket.Conn) {
	defer c.Close()

	h.add(c)
	defer h.remove(c)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
