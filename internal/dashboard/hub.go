package dashboard

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"hostwatch/internal/logger"
)

const (
	writeTimeout = 5 * time.Second
	// sendQueue is how many messages a client may fall behind before it is
	// dropped.
	sendQueue = 8
)

type client struct {
	ws   *websocket.Conn
	send chan []byte
}

// writeLoop delivers queued messages until the queue is closed or a write
// fails.
func (c *client) writeLoop(log logger.Logger) {
	for data := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := websocket.Message.Send(c.ws, string(data)); err != nil {
			log.Debug("drop ws client: %v", err)
			_ = c.ws.Close()
			for range c.send {
			}
			return
		}
	}
}

// Hub fans JSON messages out to connected WebSocket clients. Each client has
// its own writer, so a slow client never delays the others.
type Hub struct {
	log logger.Logger
	// initial, when set, produces the message a client receives on connect.
	initial func() Snapshot

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns an empty hub.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Noop()
	}
	return &Hub{log: log, clients: map[*client]struct{}{}}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues v for every client. A client whose queue is full is
// dropped.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("marshal snapshot: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Debug("drop slow ws client")
			h.removeLocked(c)
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	_ = c.ws.Close()
}

// Handler accepts WebSocket clients. Incoming messages are ignored; the
// connection lives until the client goes away.
func (h *Hub) Handler() websocket.Handler {
	return func(ws *websocket.Conn) {
		c := &client{ws: ws, send: make(chan []byte, sendQueue)}

		h.mu.Lock()
		h.clients[c] = struct{}{}
		if h.initial != nil {
			if data, err := json.Marshal(h.initial()); err == nil {
				c.send <- data
			}
		}
		h.mu.Unlock()

		go c.writeLoop(h.log)
		defer func() {
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
		}()

		for {
			var discard string
			if err := websocket.Message.Receive(ws, &discard); err != nil {
				return
			}
		}
	}
}
