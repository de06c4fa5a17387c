package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// message types
const (
	MessageTypeMessage  = "message"
	MessageTypeResponse = "response"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message websocket frame
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MessagePayload data of message and response frames
type MessagePayload struct {
	Message string `json:"message"`
}

// inboundMessage frame as read from a client, data is decoded once the type is known
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub keeps the connected clients and fans broadcasts out to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	dispatcher Dispatcher
	logger     *zap.Logger

	mu  sync.RWMutex
	ctx context.Context
}

var _ Broadcaster = &Hub{}

// NewHub create a hub, call SetDispatcher before serving clients
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "chat-hub")),
		ctx:        context.Background(),
	}
}

// SetDispatcher set the consumer of inbound chat messages
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.mu.Lock()
	h.dispatcher = d
	h.mu.Unlock()
}

// RunWithContext serve registrations and broadcasts until ctx is done, then close every client
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	defer close(h.done)

	for {
		// lifecycle events go first so a broadcast never misses a client that already registered
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.register:
			h.addClient(client)
			continue
		case client := <-h.unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Serve attach a freshly upgraded connection to the hub
func (h *Hub) Serve(conn *websocket.Conn) {
	client := NewClient(h, conn)
	select {
	case h.register <- client:
		client.Start()
	case <-h.done:
		conn.Close()
	}
}

// Broadcast queue msg for every connected client, dropped if the queue is full
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping message", zap.String("message_type", msg.Type))
	}
}

// ClientCount number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) runContext() context.Context {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ctx
}

func (h *Hub) getDispatcher() Dispatcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dispatcher
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("chat client connected", zap.Uint64("client.id", client.id), zap.Int("total_clients", n))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closeSend()
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("chat client disconnected", zap.Uint64("client.id", client.id), zap.Int("total_clients", n))
}

// sortedClients clients in connection order, caller holds the lock
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Client
	for _, client := range h.sortedClients() {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		client.closeSend()
		delete(h.clients, client)
		h.logger.Warn("dropped slow chat client", zap.Uint64("client.id", client.id))
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := h.sortedClients()
	for _, client := range clients {
		client.closeSend()
		delete(h.clients, client)
	}
	h.mu.Unlock()
	h.logger.Info("chat hub stopped", zap.Int("clients_closed", len(clients)))
}
