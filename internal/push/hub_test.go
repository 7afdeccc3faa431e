package push

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ws", hub.HandleWebSocket)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// First frame carries the assigned channel id.
	var first struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "channel", first.Type)
	require.NotEmpty(t, first.Data["channelId"])
	return conn, first.Data["channelId"]
}

func TestHubDeliversEventsToChannel(t *testing.T) {
	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	conn, channelID := dialHub(t, hub)
	assert.Equal(t, 1, hub.ClientCount())
	hub.Emit(channelID, NewConsoleEvent("hello"))

	var frame struct {
		Type string `json:"type"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "console", frame.Type)
	assert.Equal(t, "hello", frame.Data.Message)
}

func TestHubIgnoresUnknownChannels(t *testing.T) {
	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	// No client registered; Emit must not panic or block.
	hub.Emit("nope", NewConsoleEvent("dropped on the floor"))
	assert.Zero(t, hub.Dropped())
}

func TestHubCountsDroppedEvents(t *testing.T) {
	hub := NewHub(nil)
	t.Cleanup(hub.Close)

	var hookCalls int
	hub.SetDropHook(func() { hookCalls++ })

	// Register a client directly with a tiny unread buffer so Emit
	// overflows it without a websocket in the way.
	cl := &client{
		id:   "stuffed",
		send: make(chan Event, 1),
		done: make(chan struct{}),
	}
	hub.register(cl)

	hub.Emit("stuffed", NewConsoleEvent("fits"))
	hub.Emit("stuffed", NewConsoleEvent("dropped"))

	assert.Equal(t, int64(1), hub.Dropped())
	assert.Equal(t, 1, hookCalls)
}
