package ws

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openchat/openchat-pc/backend/internal/logging"
	"github.com/openchat/openchat-pc/backend/internal/monitoring"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // desktop front-end connects from a local webview origin
	},
}

const (
	// sendQueueSize is the per-client event buffer. A client that
	// falls this far behind starts losing events instead of stalling
	// the session forwarders.
	sendQueueSize = 256

	writeWait = 10 * time.Second
)

// Event is one message on the push channel to the front-end.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	// Data carries session output base64-encoded, so partial UTF-8
	// sequences and control bytes survive JSON transport intact.
	Data    string `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Hub fans terminal events out to connected WebSocket clients. It
// implements terminal.Emitter; Output and Exit never block, so the
// session forwarders stay decoupled from slow consumers.
type Hub struct {
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger, metrics *monitoring.Metrics) *Hub {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Hub{
		log:     log,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Output implements terminal.Emitter.
func (h *Hub) Output(sessionID string, data []byte) {
	h.broadcast(Event{
		Type:      "output",
		SessionID: sessionID,
		Data:      base64.StdEncoding.EncodeToString(data),
	})
}

// Exit implements terminal.Emitter.
func (h *Hub) Exit(sessionID string) {
	h.broadcast(Event{Type: "exit", SessionID: sessionID})
}

// broadcast queues an event on every client. Per-client queues
// preserve the order events were emitted; a full queue drops the
// event for that client rather than blocking the emitter.
func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			if h.metrics != nil {
				h.metrics.WSEventDropped()
			}
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams events to the
// front-end until it disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Event, sendQueueSize),
	}
	h.register(cl)
	h.log.Info("websocket client connected", zap.String("client_id", cl.id))

	cl.send <- Event{Type: "system", Message: "connected"}

	go cl.writeLoop()

	// Drain inbound frames to surface close/ping; the command surface
	// is HTTP, so payloads are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(cl)
	h.log.Info("websocket client disconnected", zap.String("client_id", cl.id))
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnected()
	}
}

// unregister removes the client and closes its queue. Removal happens
// under the same lock broadcast reads, so no send can race the close.
func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, cl)
	h.mu.Unlock()

	close(cl.send)
	if h.metrics != nil {
		h.metrics.WSDisconnected()
	}
}

// writeLoop drains the client's queue onto the connection. Exits when
// unregister closes the queue or a write fails.
func (cl *client) writeLoop() {
	defer cl.conn.Close()
	for ev := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(ev); err != nil {
			return
		}
	}
	_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
