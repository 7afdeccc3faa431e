package push

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rapzz3312/waconsole/internal/logging"
)

const clientSendBuffer = 64

// Hub fans events out to connected websocket clients. Each client owns a
// buffered send queue; a full queue drops the event rather than blocking the
// emitting goroutine.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  logging.Logger

	upgrader websocket.Upgrader

	droppedMu sync.Mutex
	dropped   int64
	onDrop    func()
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
	once sync.Once
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetDropHook installs a callback invoked once per dropped event. Used to
// feed the dropped-events metric.
func (h *Hub) SetDropHook(fn func()) {
	h.onDrop = fn
}

// Emit implements Emitter. Unknown channel ids are ignored: push delivery is
// best-effort and clients may have disconnected.
func (h *Hub) Emit(channelID string, event Event) {
	h.mu.RLock()
	c, ok := h.clients[channelID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case c.send <- event:
	default:
		h.droppedMu.Lock()
		h.dropped++
		h.droppedMu.Unlock()
		if h.onDrop != nil {
			h.onDrop()
		}
		h.logger.Warn("Client buffer full for channel %s, dropping %s event", channelID, event.Type)
	}
}

// Dropped returns the number of events dropped because of full client buffers.
func (h *Hub) Dropped() int64 {
	h.droppedMu.Lock()
	defer h.droppedMu.Unlock()
	return h.dropped
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and parks the connection until the
// client goes away. The first frame sent to the client carries its assigned
// channel id, which it passes back in Pair/Execute requests.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	channelID := uuid.NewString()
	cl := &client{
		id:   channelID,
		conn: conn,
		send: make(chan Event, clientSendBuffer),
		done: make(chan struct{}),
	}

	h.register(cl)
	h.logger.Info("Push client connected: channel=%s (total: %d)", channelID, h.ClientCount())

	cl.send <- newEvent("channel", map[string]string{"channelId": channelID})

	go cl.writeLoop(h)
	go cl.readLoop(h)
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl.id] = cl
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl.id]
	if ok {
		delete(h.clients, cl.id)
	}
	h.mu.Unlock()

	if ok {
		cl.close()
		h.logger.Info("Push client disconnected: channel=%s (remaining: %d)", cl.id, h.ClientCount())
	}
}

// Close tears down every client connection.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, cl := range clients {
		cl.close()
	}
}

func (cl *client) close() {
	cl.once.Do(func() {
		close(cl.done)
		if cl.conn != nil {
			_ = cl.conn.Close()
		}
	})
}

// writeLoop serializes events onto the websocket connection.
func (cl *client) writeLoop(h *Hub) {
	defer h.unregister(cl)
	for {
		select {
		case <-cl.done:
			return
		case event := <-cl.send:
			if err := cl.conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames; the channel is one-way. It exists to
// detect the client closing the connection.
func (cl *client) readLoop(h *Hub) {
	defer h.unregister(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
