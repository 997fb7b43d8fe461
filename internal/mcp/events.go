// File: internal/mcp/events.go
package mcp

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vatsal-bst/bluestacksmcp/api/schemas"
)

// WebSocket upgrader configuration.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The event stream carries no commands, only progress broadcasts.
		return true
	},
}

// EventType labels a message on the event stream.
type EventType string

const (
	EventStep     EventType = "Step"
	EventTerminal EventType = "Terminal"
)

// Event is the wire format of the progress stream.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data,omitempty"`
	// Timestamp formatted as ISO 8601 (RFC3339) to match JS Date().toISOString().
	Timestamp string `json:"timestamp"`
}

// Constants for WebSocket timeouts and limits (based on Gorilla WebSocket examples).
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Send buffer size.
	sendChannelSize = 256
)

// stepEvent is the condensed per-step payload broadcast to subscribers.
type stepEvent struct {
	Index          int                  `json:"index"`
	ActionKind     schemas.ActionKind   `json:"action_kind"`
	Classification schemas.OutcomeClass `json:"classification"`
}

// terminalEvent announces a finished session.
type terminalEvent struct {
	Status schemas.SessionStatus `json:"status"`
	Reason string                `json:"reason,omitempty"`
	Steps  int                   `json:"steps"`
}

// Hub broadcasts session progress to connected WebSocket clients. It
// implements orchestrator.EventSink; publishing never blocks the loop, slow
// subscribers drop messages instead.
type Hub struct {
	log     *zap.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// wsClient is one active event stream subscriber.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		log:     logger.Named("events"),
		clients: make(map[*wsClient]struct{}),
	}
}

// PublishStep broadcasts one recorded step.
func (h *Hub) PublishStep(session *schemas.TaskSession, step schemas.StepRecord) {
	h.broadcast(Event{
		Type:      EventStep,
		SessionID: session.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: stepEvent{
			Index:          step.Index,
			ActionKind:     step.Action.Kind,
			Classification: step.Outcome.Classification,
		},
	})
}

// PublishTerminal broadcasts a session's terminal transition.
func (h *Hub) PublishTerminal(session *schemas.TaskSession) {
	h.broadcast(Event{
		Type:      EventTerminal,
		SessionID: session.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data: terminalEvent{
			Status: session.Status,
			Reason: session.TerminalReason,
			Steps:  len(session.Steps),
		},
	})
}

func (h *Hub) broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- event:
		default:
			h.log.Warn("dropping event for slow subscriber")
		}
	}
}

// HandleEvents upgrades the connection and streams events until the client
// disconnects.
func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan Event, sendChannelSize),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("event subscriber connected", zap.String("remote", conn.RemoteAddr().String()))

	go client.writePump()
	client.readPump()
}

func (c *wsClient) close() {
	c.hub.mu.Lock()
	if _, ok := c.hub.clients[c]; ok {
		delete(c.hub.clients, c)
		close(c.send)
	}
	c.hub.mu.Unlock()
	c.conn.Close()
}

// readPump discards inbound frames and keeps the pong deadline fresh. The
// stream is one-way; a read error means the client is gone.
func (c *wsClient) readPump() {
	defer c.close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
