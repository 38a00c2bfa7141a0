package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"markestedt/aityping/apperr"
	"markestedt/aityping/orchestrator"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message types pushed to dashboard clients
const (
	MessageTypeState = "state"
	MessageTypeRun   = "run"
)

// Message is the envelope of every WebSocket push
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// StateMessage reports an orchestrator state change
type StateMessage struct {
	State string `json:"state"`
}

// RunMessage summarizes a finished translation
type RunMessage struct {
	Mode            string   `json:"mode"`
	TargetLang      string   `json:"target_lang"`
	CharCount       int      `json:"char_count"`
	Success         bool     `json:"success"`
	DurationMs      int64    `json:"duration_ms"`
	Tokens          *int     `json:"tokens,omitempty"`
	TokensPerSecond *float64 `json:"tokens_per_second,omitempty"`
	Error           string   `json:"error,omitempty"`
	ErrorCategory   string   `json:"error_category,omitempty"`
}

func newRunMessage(r *orchestrator.Run) RunMessage {
	msg := RunMessage{
		Mode:            string(r.Mode),
		TargetLang:      r.TargetLang,
		CharCount:       r.CharCount,
		Success:         r.Success(),
		DurationMs:      r.Duration.Milliseconds(),
		Tokens:          r.Tokens,
		TokensPerSecond: r.TokensPerSecond,
	}
	if r.Err != nil {
		msg.Error = apperr.Message(r.Err)
		msg.ErrorCategory = string(apperr.CategoryOf(r.Err))
	}
	return msg
}

// Hub fans messages out to connected dashboard clients. It observes the
// orchestrator so every state change and finished run is pushed live.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a hub; call Run to start delivering
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run delivers broadcasts until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			slog.Debug("Dashboard client connected", "clients", h.ClientCount())

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastMessage queues msg for every client, dropping it when the queue
// is full
func (h *Hub) BroadcastMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to encode message", "type", msg.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Debug("Broadcast queue full, dropping message", "type", msg.Type)
	}
}

func (h *Hub) StateChanged(s orchestrator.State) {
	h.BroadcastMessage(Message{Type: MessageTypeState, Data: StateMessage{State: s.String()}})
}

func (h *Hub) RunFinished(r *orchestrator.Run) {
	h.BroadcastMessage(Message{Type: MessageTypeRun, Data: newRunMessage(r)})
}

// add registers c, reporting false once the hub has stopped
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Client is one WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards client input and detects disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WebSocket closed", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
