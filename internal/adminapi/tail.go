package adminapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TailHub fans formatted telemetry lines out to connected websocket
// clients, fed by the file consumer's already-formatted CSV lines. A
// slow or absent client never blocks the consumer: each client has its
// own bounded channel and a full channel just drops the line for that
// client.
type TailHub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*tailClient]struct{}
	closed  bool
}

type tailClient struct {
	conn *websocket.Conn
	out  chan string
}

const tailClientBuffer = 256

func NewTailHub(logger *zap.Logger) *TailHub {
	return &TailHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*tailClient]struct{}),
	}
}

// Publish fans line out to every connected client, dropping for clients
// whose buffer is full.
func (h *TailHub) Publish(line string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- line:
		default:
		}
	}
}

// HandleUpgrade upgrades the request to a websocket and streams published
// lines to it until the client disconnects or the hub is closed.
func (h *TailHub) HandleUpgrade(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("tail websocket upgrade failed", zap.Error(err))
		return
	}

	client := &tailClient{conn: conn, out: make(chan string, tailClientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		conn.Close()
	}()

	for line := range client.out {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
}

func (h *TailHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.out)
		c.conn.Close()
	}
	h.clients = nil
}
