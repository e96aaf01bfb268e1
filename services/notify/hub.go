// Package notify implements the messaging collaborator: delivery of
// notification texts to subscribers over live WebSocket connections.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrDeliveryFailed indicates one subscriber's message could not be
// delivered. The failure is isolated to that subscriber.
var ErrDeliveryFailed = errors.New("delivery failed")

// Constants for hub configuration
const (
	MaxClients    = 1000
	WriteTimeout  = 10 * time.Second
	PongTimeout   = 60 * time.Second
	PingInterval  = 30 * time.Second
	ReadSizeLimit = 512
)

// Message is the payload pushed to a connected subscriber
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Time string `json:"time"`
}

// client is one subscriber's live connection
type client struct {
	subscriberID uint
	conn         *websocket.Conn
	writeMu      sync.Mutex
}

// Hub tracks one live connection per subscriber and delivers notification
// texts to them. A subscriber without a live connection cannot be delivered
// to; the dispatcher retries on a later cycle once they reconnect.
type Hub struct {
	clients  map[uint]*client
	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

// NewHub creates a new delivery hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket upgrades an incoming connection and registers it under
// the subscriber id from the query string. A new connection for the same
// subscriber replaces the previous one.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	subscriberID, err := strconv.ParseUint(r.URL.Query().Get("subscriber_id"), 10, 32)
	if err != nil {
		http.Error(w, "subscriber_id query parameter required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	atCapacity := len(h.clients) >= MaxClients
	h.mu.RUnlock()
	if atCapacity {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	c := &client{subscriberID: uint(subscriberID), conn: conn}

	h.mu.Lock()
	if prev, ok := h.clients[c.subscriberID]; ok {
		prev.conn.Close()
	}
	h.clients[c.subscriberID] = c
	clientCount := len(h.clients)
	h.mu.Unlock()
	log.Printf("Subscriber %d connected. Total clients: %d", c.subscriberID, clientCount)

	go h.pingLoop(c)
	go h.readPump(c)
}

// Deliver pushes one notification text to the subscriber's live connection.
// It returns ErrDeliveryFailed when the subscriber is not connected or the
// write does not complete.
func (h *Hub) Deliver(subscriberID uint, text string) error {
	h.mu.RLock()
	c, ok := h.clients[subscriberID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: subscriber %d not connected", ErrDeliveryFailed, subscriberID)
	}

	payload, err := json.Marshal(Message{
		Type: "notification",
		Text: text,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.remove(c)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// pingLoop keeps the connection alive and drops it when pings fail
func (h *Hub) pingLoop(c *client) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			h.remove(c)
			return
		}
	}
}

// readPump consumes control frames and unregisters the client on error
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(ReadSizeLimit)
	c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

// remove unregisters a client if it is still the registered connection for
// its subscriber
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if current, ok := h.clients[c.subscriberID]; ok && current == c {
		delete(h.clients, c.subscriberID)
		log.Printf("Subscriber %d disconnected. Total clients: %d", c.subscriberID, len(h.clients))
	}
	h.mu.Unlock()
	c.conn.Close()
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes all live connections
func (h *Hub) Shutdown() {
	h.mu.Lock()
	for _, c := range h.clients {
		c.conn.Close()
	}
	h.clients = make(map[uint]*client)
	h.mu.Unlock()
	log.Println("Notification hub shutdown complete")
}
