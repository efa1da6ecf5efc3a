package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	domorder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability/logctx"

	"github.com/gorilla/websocket"
)

const (
	componentHub = "ws_hub"
	sendBuffer   = 32
	writeWait    = 10 * time.Second
)

// Notification is the message kitchen displays receive. Alert asks the display to
// play the audible cue.
type Notification struct {
	Event   string          `json:"event"`
	Alert   bool            `json:"alert"`
	Payload domoutbox.Event `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub pushes order notifications to every connected display. A display that cannot
// keep up is disconnected instead of slowing the others down.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      observability.Logger
}

func NewHub(tel observability.Observability) *Hub {
	_, logger, _ := observability.Resolve(tel)
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.With(observability.F("component", componentHub)),
	}
}

// Attach subscribes the hub to the events displays refresh on.
func (h *Hub) Attach(sub domoutbox.Subscriber) {
	sub.Subscribe(domorder.OrderUpdatedEvent{}.EventName(), h.Broadcast)
	sub.Subscribe(domorder.ItemReadyEvent{}.EventName(), h.Broadcast)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := logctx.FromOr(r.Context(), h.log)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", observability.F("error", err.Error()))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	logger.Info("ws_client_connected", observability.F("clients", h.Clients()))

	go h.writeLoop(c)
	h.readLoop(c)
}

// Broadcast sends e to every display. It has the event handler signature so it can
// subscribe to the bus directly.
func (h *Hub) Broadcast(ctx context.Context, e domoutbox.Event) error {
	msg, err := json.Marshal(Notification{
		Event:   e.EventName(),
		Alert:   e.EventName() == domorder.ItemReadyEvent{}.EventName(),
		Payload: e,
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		logctx.FromOr(ctx, h.log).Warn("ws_client_dropped_slow")
		h.remove(c)
	}
	return nil
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}
