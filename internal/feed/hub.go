// Package feed streams the spectator view over websockets: every game event
// as it happens plus a full snapshot each tick. The feed is read-only; agent
// commands go through the HTTP API.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridfall/server/internal/engine"
	"github.com/gridfall/server/internal/world"
)

const clientBuffer = 64

// frame is the tagged wire envelope for the spectator stream.
type frame struct {
	Type     string           `json:"type"` // "event" or "snapshot"
	Event    *world.Event     `json:"event,omitempty"`
	Snapshot *engine.Snapshot `json:"snapshot,omitempty"`
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// Hub fans the engine's event and snapshot stream out to websocket
// spectators. A client that cannot keep up is dropped rather than allowed to
// stall the game loop.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		clients: make(map[*client]struct{}),
	}
}

var _ engine.Subscriber = (*Hub)(nil)

// PublishEvent broadcasts one game event to every connected spectator.
func (h *Hub) PublishEvent(ev *world.Event) {
	h.broadcast(frame{Type: "event", Event: ev})
}

// PublishSnapshot broadcasts the per-tick full-state refresh.
func (h *Hub) PublishSnapshot(snap *engine.Snapshot) {
	h.broadcast(frame{Type: "snapshot", Snapshot: snap})
}

func (h *Hub) broadcast(f frame) {
	b, err := json.Marshal(f)
	if err != nil {
		h.log.Error("feed: marshal frame", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- b:
		default:
			// Slow consumer: close it out instead of blocking the publisher.
			delete(h.clients, c)
			close(c.out)
		}
	}
}

// ClientCount reports the number of connected spectators.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades the request and serves the stream until the client
// disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}

		c := &client{conn: conn, out: make(chan []byte, clientBuffer)}
		h.mu.Lock()
		h.clients[c] = struct{}{}
		h.mu.Unlock()

		go h.writeLoop(c)
		h.readLoop(c)
	}
}

// writeLoop drains the client's outbound queue. Returns when the hub closes
// the channel (slow consumer) or a write fails.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for b := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
		time.Now().Add(time.Second))
}

// readLoop discards inbound frames; the feed is one-way. A read error means
// the client went away.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

// drop removes the client if it is still registered and closes its queue.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.out)
	}
}

// Close disconnects all spectators, typically at shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.out)
		_ = c.conn.Close()
	}
}
