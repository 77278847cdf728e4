package stream

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"monitord/internal/alerts"
)

const clientBuffer = 32

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub fans alert events out to connected websocket clients. A client that
// falls behind loses messages instead of blocking the alert manager.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{log: logger, clients: map[chan []byte]struct{}{}}
}

// Subscribe registers a client. cancel must be called when the client goes away.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msgType string, payload any) {
	b, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		h.log.Error("encode stream message", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- b:
		default:
			h.log.Warn("stream client lagging, message dropped", "type", msgType)
		}
	}
}

// AlertEvent is subscribed to the alert manager.
func (h *Hub) AlertEvent(ev alerts.Event) {
	switch ev.Kind {
	case alerts.EventCreated:
		h.Broadcast("alert", ev.Alert)
	case alerts.EventResolved:
		h.Broadcast("resolved", ev.Alert)
	case alerts.EventDelivered:
	}
}

// Upgrade rejects plain HTTP requests to the stream endpoint.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		msgs, cancel := h.Subscribe()
		defer cancel()
		h.log.Info("stream client connected", "remote", c.RemoteAddr().String())

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for {
			select {
			case <-closed:
				h.log.Info("stream client disconnected", "remote", c.RemoteAddr().String())
				return
			case b := <-msgs:
				if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
					h.log.Warn("stream write failed", "err", err)
					return
				}
			}
		}
	})
}
