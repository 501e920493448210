package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/welldanyogia/node-attachments-backend/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe         MessageType = "subscribe"
	MessageTypeUnsubscribe       MessageType = "unsubscribe"
	MessageTypeAttachmentCreated MessageType = "attachment_created"
	MessageTypeAttachmentDeleted MessageType = "attachment_deleted"
	MessageTypeError             MessageType = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type       MessageType `json:"type"`
	NodeID     uint        `json:"node_id,omitempty"`
	Attachment interface{} `json:"attachment,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// DeletedPayload identifies a removed attachment
type DeletedPayload struct {
	ID uint `json:"id"`
}

// Hub maintains the set of active clients and broadcasts node events
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Node subscriptions: nodeID -> set of clients
	subscriptions map[uint]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscribe to node
	subscribe chan *subscriptionRequest

	// Unsubscribe from node
	unsubscribeNode chan *subscriptionRequest

	// Broadcast to node subscribers
	broadcast chan *broadcastMessage

	// Closed once Run returns
	done chan struct{}

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	nodeID uint
}

type broadcastMessage struct {
	nodeID  uint
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:         make(map[*Client]bool),
		subscriptions:   make(map[uint]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		subscribe:       make(chan *subscriptionRequest),
		unsubscribeNode: make(chan *subscriptionRequest),
		broadcast:       make(chan *broadcastMessage, 256),
		done:            make(chan struct{}),
		logger:          logger,
	}
}

// Run starts the hub's main loop; it returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				// Remove from all subscriptions
				for nodeID, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, nodeID)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.nodeID] == nil {
				h.subscriptions[req.nodeID] = make(map[*Client]bool)
			}
			h.subscriptions[req.nodeID][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to node", slog.Uint64("node_id", uint64(req.nodeID)))
			}

		case req := <-h.unsubscribeNode:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.nodeID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.nodeID)
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unsubscribed from node", slog.Uint64("node_id", uint64(req.nodeID)))
			}

		case msg := <-h.broadcast:
			h.mu.RLock()
			subscribers := h.subscriptions[msg.nodeID]
			for client := range subscribers {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// closeAll drops every client on shutdown
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
	h.subscriptions = make(map[uint]map[*Client]bool)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to a node's attachment events
func (h *Hub) Subscribe(client *Client, nodeID uint) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, nodeID: nodeID}:
	case <-h.done:
	}
}

// Unsubscribe unsubscribes a client from a node
func (h *Hub) Unsubscribe(client *Client, nodeID uint) {
	select {
	case h.unsubscribeNode <- &subscriptionRequest{client: client, nodeID: nodeID}:
	case <-h.done:
	}
}

// SubscriberCount returns how many clients follow a node
func (h *Hub) SubscriberCount(nodeID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[nodeID])
}

// AttachmentCreated broadcasts a new attachment to node subscribers
func (h *Hub) AttachmentCreated(attachment *models.Attachment) {
	h.publish(WSMessage{
		Type:       MessageTypeAttachmentCreated,
		NodeID:     attachment.NodeID,
		Attachment: attachment,
	})
}

// AttachmentDeleted broadcasts a removed attachment to node subscribers
func (h *Hub) AttachmentDeleted(nodeID, attachmentID uint) {
	h.publish(WSMessage{
		Type:       MessageTypeAttachmentDeleted,
		NodeID:     nodeID,
		Attachment: DeletedPayload{ID: attachmentID},
	})
}

// publish never blocks the caller; events are dropped when the queue is full
func (h *Hub) publish(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{nodeID: msg.NodeID, message: data}:
	default:
		if h.logger != nil {
			h.logger.Warn("broadcast queue full, event dropped",
				slog.String("type", string(msg.Type)),
				slog.Uint64("node_id", uint64(msg.NodeID)))
		}
	}
}
