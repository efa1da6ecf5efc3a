package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domorder "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryDisplay(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a, b := dial(t, srv), dial(t, srv)
	waitForClients(t, hub, 2)

	require.NoError(t, hub.Broadcast(context.Background(), domorder.ItemReadyEvent{OrderID: "o-1", ItemName: "Soup"}))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Event   string                  `json:"event"`
			Alert   bool                    `json:"alert"`
			Payload domorder.ItemReadyEvent `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "order.item_ready", msg.Event)
		assert.True(t, msg.Alert)
		assert.Equal(t, "Soup", msg.Payload.ItemName)
	}
}

func TestClosedDisplayIsRemoved(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)
	conn.Close()
	waitForClients(t, hub, 0)

	assert.NoError(t, hub.Broadcast(context.Background(), domorder.OrderUpdatedEvent{OrderID: "o-1"}))
}

type subscriber map[string]domoutbox.Handler

func (s subscriber) Subscribe(name string, h domoutbox.Handler) { s[name] = h }

func TestAttachSubscribesOrderEvents(t *testing.T) {
	sub := subscriber{}
	NewHub(nil).Attach(sub)
	assert.Contains(t, sub, "order.updated")
	assert.Contains(t, sub, "order.item_ready")
}
