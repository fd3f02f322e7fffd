package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/logger"
	"github.com/abrezinsky/slotboard/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256

	snapshotTimeout = 10 * time.Second

	// MessageSlots carries the full board for a new subscriber.
	MessageSlots = "slots"
	// MessageError tells a subscriber its snapshot could not be loaded.
	MessageError = "error"
)

// Snapshotter loads the slots sent to new subscribers
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]models.Slot, error)
}

// Client represents one live subscription
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	key  string
	who  models.Identity
}

// Key returns the client key the subscription is registered under.
func (c *Client) Key() string {
	return c.key
}

type direct struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active subscriptions and fans out board events
type Hub struct {
	log        logger.Logger
	board      Snapshotter
	clients    map[*Client]bool
	byKey      map[string]*Client
	broadcast  chan []byte
	direct     chan direct
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
}

// New creates a new Hub
func New(log logger.Logger, board Snapshotter) *Hub {
	return &Hub{
		log:        log,
		board:      board,
		clients:    make(map[*Client]bool),
		byKey:      make(map[string]*Client),
		broadcast:  make(chan []byte),
		direct:     make(chan direct),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Start runs the hub until ctx is cancelled or Stop is called
func (h *Hub) Start(ctx context.Context) {
	go h.run(ctx)
}

// Stop closes every subscription and stops the hub
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.mutex.Lock()
			if previous, ok := h.byKey[client.key]; ok && previous != client {
				h.drop(previous)
				h.log.Debug("Replaced subscription", "client", client.key)
			}
			h.clients[client] = true
			h.byKey[client.key] = client
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "client", client.key, "uid", client.who.UID, "clients", count)

			go h.sendSnapshot(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "client", client.key, "clients", count)

		case d := <-h.direct:
			h.mutex.RLock()
			if h.clients[d.client] {
				select {
				case d.client.send <- d.data:
				default:
				}
			}
			h.mutex.RUnlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.drop(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// drop removes client and closes its send channel. Caller holds the lock.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if h.byKey[client.key] == client {
		delete(h.byKey, client.key)
	}
	close(client.send)
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		h.drop(client)
	}
}

func (h *Hub) sendSnapshot(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	var msg models.WSMessage
	slots, err := h.board.Snapshot(ctx)
	if err != nil {
		h.log.Error("Failed to load board snapshot", "client", client.key, "error", err)
		msg = models.WSMessage{Type: MessageError, Payload: map[string]string{"message": "failed to load"}}
	} else {
		msg = models.WSMessage{Type: MessageSlots, Payload: slots}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("Failed to marshal snapshot", "error", err)
		return
	}
	select {
	case h.direct <- direct{client: client, data: data}:
	case <-h.done:
	}
}

// BroadcastMessage sends a message to every active subscription
func (h *Hub) BroadcastMessage(msgType string, payload interface{}) {
	data, err := json.Marshal(models.WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.log.Error("Failed to marshal message", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// ClientCount returns the number of active subscriptions
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump drains client frames until the connection fails. Subscribers
// never send commands, so frames are only logged.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
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
				c.hub.log.Warn("WebSocket error", "client", c.key, "error", err)
			}
			break
		}
		c.hub.log.Debug("Ignoring client message", "client", c.key, "bytes", len(message))
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

// ClientKey picks the subscription key for r: the explicit client parameter,
// else the caller's uid, else a fresh id for the connection. Explicit keys
// are scoped to the signed-in caller, so they never match another member's
// key.
func ClientKey(r *http.Request) string {
	who := auth.IdentityFrom(r.Context())
	if key := strings.TrimSpace(r.URL.Query().Get("client")); key != "" {
		if !who.IsAnonymous() {
			return "uid:" + who.UID + ":" + key
		}
		return "client:" + key
	}
	if !who.IsAnonymous() {
		return "uid:" + who.UID
	}
	return "conn:" + uuid.NewString()
}

// ServeWs handles websocket requests from clients
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		key:  ClientKey(r),
		who:  auth.IdentityFrom(r.Context()),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
