package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event feed types broadcast over /ws.
const (
	EventSessionRegistered = "session.registered"
	EventSessionRemoved    = "session.removed"
	EventActionRegistered  = "action.registered"
	EventActionResolved    = "action.resolved"
	EventActionResponded   = "action.responded"
)

// Event is one entry on the live feed. The feed is observational only:
// feed clients cannot resolve tokens through it, they watch state change.
type Event struct {
	Type      string    `json:"type"`
	Token     string    `json:"token,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Project   string    `json:"project,omitempty"`
	Verdict   string    `json:"verdict,omitempty"`
	Time      time.Time `json:"time"`
}

// channelBufferSize is the per-client send buffer. A slow client falls
// behind and loses events rather than blocking the control-plane.
const channelBufferSize = 64

// Hub fans events out to connected WebSocket clients.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*feedClient]bool
	broadcast chan Event
	stopped   bool
	upgrader  websocket.Upgrader
}

// NewHub creates a hub. Call Run in a goroutine to start delivery.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*feedClient]bool),
		broadcast: make(chan Event, 256),
		upgrader: websocket.Upgrader{
			// Tunnel origins are unpredictable; tokens are the trust boundary.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run delivers broadcast events to all clients until Stop closes the
// channel.
func (h *Hub) Run() {
	for ev := range h.broadcast {
		h.mu.RLock()
		for client := range h.clients {
			select {
			case <-client.done:
				// Client is shutting down - skip.
			case client.send <- ev:
			default:
				// Buffer full: drop for this client rather than block.
				log.Printf("server: feed client send buffer full, dropping event")
			}
		}
		h.mu.RUnlock()
	}
}

// Broadcast queues an event for delivery. Non-blocking; drops when the hub
// is saturated or stopped.
func (h *Hub) Broadcast(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	// Hold RLock through the send so Stop cannot close the channel between
	// the stopped check and the send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("server: event feed saturated, dropping event")
	}
}

// Stop disconnects all clients and halts delivery. Safe to call once.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*feedClient]bool)
	h.mu.Unlock()

	close(h.broadcast)
}

// ClientCount returns the number of connected feed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the connection and registers a feed client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: feed upgrade failed: %v", err)
		return
	}

	client := &feedClient{
		hub:  h,
		conn: conn,
		send: make(chan Event, channelBufferSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[client] = true
	h.mu.Unlock()

	log.Printf("server: feed client connected (%d total)", h.ClientCount())

	go client.writePump()
	go client.readPump()
}

// feedClient is one /ws connection.
type feedClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// close signals shutdown exactly once. Only done is closed, never send, so
// a concurrent Broadcast can never write to a closed channel.
func (c *feedClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump streams events to the socket and pings every 30 seconds to
// keep NATs and proxies from reaping the connection.
func (c *feedClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("server: feed write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; its job is detecting disconnects and
// answering pings via the pong handler.
func (c *feedClient) readPump() {
	defer func() {
		c.hub.mu.Lock()
		delete(c.hub.clients, c)
		c.hub.mu.Unlock()
		c.close()
		log.Printf("server: feed client disconnected (%d remaining)", c.hub.ClientCount())
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
