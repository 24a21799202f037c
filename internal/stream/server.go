package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// #region constants

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536

	// Size of client send buffer.
	sendBufferSize = 256
)

// Message types on the wire.
const (
	MsgTypeEvent    = "event"
	MsgTypeAlert    = "alert"
	MsgTypeSummary  = "summary"
	MsgTypeSnapshot = "snapshot"
	MsgTypePing     = "ping"
	MsgTypePong     = "pong"
	MsgTypeError    = "error"
)

// #endregion constants

// #region envelope

// Envelope is the websocket message wrapper.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

func envelope(msgType string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// #endregion envelope

// #region upgrader

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SetUpgraderCheckOrigin customizes the origin check.
func SetUpgraderCheckOrigin(fn func(*http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// #endregion upgrader

// #region client

// client is a single websocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *client) handleMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.sendError("invalid_json", "failed to parse message")
		return
	}

	switch env.Type {
	case MsgTypeEvent:
		var ev Event
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			c.sendError("invalid_event", err.Error())
			return
		}
		if _, err := c.hub.processor.HandleEvent(ev); err != nil {
			c.sendError("event_rejected", err.Error())
		}
	case MsgTypeSnapshot:
		data, err := c.hub.processor.SnapshotJSON()
		if err != nil {
			c.sendError("snapshot_failed", err.Error())
			return
		}
		c.enqueue(Envelope{Type: MsgTypeSnapshot, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	case MsgTypeSummary:
		data, err := c.hub.processor.SummaryJSON()
		if err != nil {
			c.sendError("summary_failed", err.Error())
			return
		}
		c.enqueue(Envelope{Type: MsgTypeSummary, Data: data, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	case MsgTypePing:
		c.enqueue(Envelope{Type: MsgTypePong, Timestamp: time.Now().UTC().Format(time.RFC3339)})
	default:
		log.Printf("[ws] unknown message type: %s", env.Type)
	}
}

func (c *client) enqueue(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		// Buffer full, drop.
	}
}

func (c *client) sendError(code, message string) {
	data, err := envelope(MsgTypeError, map[string]string{"code": code, "message": message})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// #endregion client

// #region hub

// Hub accepts websocket clients, feeds their events into the processor and
// broadcasts every surviving alert to all connected clients.
type Hub struct {
	processor *Processor

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub creates a hub over a processor.
func NewHub(p *Processor) *Hub {
	return &Hub{
		processor:  p,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run drives the hub loop: client lifecycle, alert fan-out. Blocks until
// Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			log.Printf("[ws] client connected (total: %d)", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			log.Printf("[ws] client disconnected (total: %d)", h.ClientCount())

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()

		case alert := <-h.processor.Alerts():
			data, err := envelope(MsgTypeAlert, alert)
			if err != nil {
				log.Printf("[ws] encode alert: %v", err)
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a pre-encoded message to every client.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// ServeWS upgrades an HTTP request to a websocket client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade: %v", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// #endregion hub
