package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	sendBufferSize = 256

	// maxSubscriptionsPerClient caps how many nodes one connection may follow
	maxSubscriptionsPerClient = 32

	// inbound control messages allowed per second, with a small burst
	controlRate  = 5
	controlBurst = 10
)

// Client is one websocket connection and the nodes it follows.
// nodes is only touched from the read goroutine.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	nodes   map[uint]struct{}
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client bound to hub
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		nodes:   make(map[uint]struct{}),
		limiter: rate.NewLimiter(controlRate, controlBurst),
		logger:  logger,
	}
}

// ReadPump reads subscribe and unsubscribe requests until the peer goes away
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) && c.logger != nil {
				c.logger.Warn("websocket read error",
					slog.Int("subscriptions", len(c.nodes)),
					slog.Any("error", err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump delivers queued node events and keeps the connection alive with pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) handleMessage(data []byte) {
	if !c.limiter.Allow() {
		c.sendError("too many requests")
		return
	}

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
	default:
		c.sendError("unknown message type")
		return
	}

	if msg.NodeID == 0 {
		c.sendError("node_id is required")
		return
	}

	if msg.Type == MessageTypeSubscribe {
		c.subscribe(msg.NodeID)
	} else {
		c.unsubscribe(msg.NodeID)
	}
}

// subscribe is idempotent; a repeated node does not count twice against the cap
func (c *Client) subscribe(nodeID uint) {
	if _, ok := c.nodes[nodeID]; ok {
		return
	}
	if len(c.nodes) >= maxSubscriptionsPerClient {
		c.sendError("subscription limit reached")
		return
	}
	c.nodes[nodeID] = struct{}{}
	c.hub.Subscribe(c, nodeID)
}

func (c *Client) unsubscribe(nodeID uint) {
	if _, ok := c.nodes[nodeID]; !ok {
		c.sendError("not subscribed to node")
		return
	}
	delete(c.nodes, nodeID)
	c.hub.Unsubscribe(c, nodeID)
}

// sendError queues an error frame, dropping it when the buffer is full
func (c *Client) sendError(errMsg string) {
	data, err := json.Marshal(WSMessage{Type: MessageTypeError, Error: errMsg})
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
	}
}
