package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/seenimoa/edgarkpi/pkg/models"
	"github.com/seenimoa/edgarkpi/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Event types pushed to WebSocket clients.
const (
	EventSnapshot   = "snapshot"
	EventRefresh    = "refresh"
	EventSubscribed = "subscribed"
	EventPong       = "pong"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type   string `json:"type"`
	Ticker string `json:"ticker,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// SnapshotEvent announces a freshly assembled snapshot.
type SnapshotEvent struct {
	CycleID   string    `json:"cycle_id"`
	Company   string    `json:"company"`
	Periods   int       `json:"periods"`
	Latest    string    `json:"latest,omitempty"` // latest period label
	Resolved  int       `json:"resolved"`
	Requested int       `json:"requested"`
	FetchedAt time.Time `json:"fetched_at"`
}

func snapshotEvent(snap *models.CompanySnapshot) WSMessage {
	ev := SnapshotEvent{
		CycleID:   snap.CycleID,
		Company:   snap.Company.Name,
		Requested: len(snap.Audit),
		FetchedAt: snap.FetchedAt,
	}
	if !snap.Panel.Empty() {
		ev.Periods = len(snap.Panel.Rows)
		ev.Latest = snap.Panel.Rows[len(snap.Panel.Rows)-1].PeriodLabel
	}
	for _, a := range snap.Audit {
		if a.Status == models.StatusResolved {
			ev.Resolved++
		}
	}
	return WSMessage{Type: EventSnapshot, Ticker: snap.Company.Ticker, Data: ev}
}

// handleWebSocket upgrades HTTP connections to WebSocket and streams
// snapshot and refresh events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade")
		return
	}

	client := NewWSClient(s.wsHub)
	s.wsHub.Register(client)

	go wsWritePump(conn, client)
	go wsReadPump(conn, client, s.logger)
}

// wsReadPump pumps messages from the WebSocket connection to the hub.
func wsReadPump(conn *websocket.Conn, client *WSClient, logger zerolog.Logger) {
	defer func() {
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read")
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if reply, ok := client.handle(msg); ok {
			client.trySend(reply)
		}
	}
}

// wsWritePump pumps messages from the hub to the WebSocket connection.
func wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ============================================================
// WebSocket Hub
// ============================================================

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{} // closed when Run returns
}

// WSClient represents a single WebSocket connection. A client with no
// subscriptions receives every snapshot event.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage

	sendMu sync.Mutex // guards sends on send against close
	closed bool

	mu      sync.Mutex
	tickers map[string]bool
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// NewWSClient creates a client attached to hub.
func NewWSClient(hub *WSHub) *WSClient {
	return &WSClient{
		hub:     hub,
		send:    make(chan WSMessage, 256),
		tickers: make(map[string]bool),
	}
}

// Run starts the hub event loop. It returns when ctx is cancelled, closing
// every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.wants(msg) && !client.trySend(msg) {
					// slow client
					delete(h.clients, client)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients. Messages
// are dropped while the broadcast queue is full.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// handle applies a client message and returns the reply, if any.
// {"type":"subscribe","ticker":"AAPL"} limits snapshot events to the
// subscribed tickers.
func (c *WSClient) handle(msg WSMessage) (WSMessage, bool) {
	switch msg.Type {
	case "subscribe":
		ticker := utils.NormalizeTicker(msg.Ticker)
		if ticker == "" {
			return WSMessage{}, false
		}
		c.mu.Lock()
		c.tickers[ticker] = true
		c.mu.Unlock()
		return WSMessage{Type: EventSubscribed, Ticker: ticker}, true
	case "unsubscribe":
		c.mu.Lock()
		delete(c.tickers, utils.NormalizeTicker(msg.Ticker))
		c.mu.Unlock()
		return WSMessage{}, false
	case "ping":
		return WSMessage{Type: EventPong}, true
	}
	return WSMessage{}, false
}

// wants reports whether the client should receive msg.
func (c *WSClient) wants(msg WSMessage) bool {
	if msg.Type != EventSnapshot {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers) == 0 || c.tickers[msg.Ticker]
}

// trySend queues msg without blocking. It reports false when the queue is
// full or the client has been closed.
func (c *WSClient) trySend(msg WSMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close closes the send queue once, which ends the write pump.
func (c *WSClient) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
