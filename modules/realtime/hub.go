package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket connection subscribed to its owner's change feed.
type Client struct {
	ID     string
	UserID string
	Conn   Conn
}

type delivery struct {
	userID  string
	payload any
}

// Hub fans change events out to the connections of the user who owns them.
// A single goroutine (Run) does every write, so each connection receives
// frames in the order Broadcast was called.
type Hub struct {
	clients    map[string]*Client            // clientID -> Client
	users      map[string]map[string]*Client // userID -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery
	done       chan struct{}
	mu         sync.RWMutex
	logger     types.Logger
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		users:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and deliveries until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client. It is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues payload for every connection of userID.
func (h *Hub) Broadcast(userID string, payload any) {
	select {
	case h.broadcast <- delivery{userID: userID, payload: payload}:
	case <-h.done:
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserClientCount returns the number of connections of one user.
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.users = make(map[string]map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if h.users[client.UserID] == nil {
		h.users[client.UserID] = make(map[string]*Client)
	}
	h.users[client.UserID][client.ID] = client
	h.logger.Debug("Client registered", "client_id", client.ID, "user_id", client.UserID)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(client)
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	if conns := h.users[client.UserID]; conns != nil {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.users, client.UserID)
		}
	}
	h.logger.Debug("Client unregistered", "client_id", client.ID, "user_id", client.UserID)
}

func (h *Hub) handleBroadcast(msg delivery) {
	data, err := json.Marshal(msg.payload)
	if err != nil {
		h.logger.Error("Failed to marshal change event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.users[msg.userID] {
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("Dropping client after failed write", "client_id", client.ID, "error", err)
			_ = client.Conn.Close()
			h.remove(client)
		}
	}
}
