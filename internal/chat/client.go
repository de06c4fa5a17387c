package chat

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pot-code/lesson-tutor/internal/infrastructure/logging"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var clientIDCounter uint64

// Client one websocket connection attached to a Hub
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	logger *zap.Logger

	// closed guarded by hub.mu, set once send is closed
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := atomic.AddUint64(&clientIDCounter, 1)
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, 256),
		logger: hub.logger.With(zap.Uint64("client.id", id)),
	}
}

// Start run the read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := logging.SetLoggerInContext(c.hub.runContext(), c.logger)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected websocket close", zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Debug("discard malformed frame", zap.Error(err))
			continue
		}
		switch msg.Type {
		case MessageTypePing:
			c.enqueue(Message{Type: MessageTypePong})
		case MessageTypeMessage:
			var payload MessagePayload
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				c.logger.Debug("discard malformed message payload", zap.Error(err))
				continue
			}
			if d := c.hub.getDispatcher(); d != nil {
				d.Dispatch(ctx, payload.Message)
			}
			// the completion may outlast the pong window
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		default:
			c.logger.Debug("discard unknown frame", zap.String("message_type", msg.Type))
		}
	}
}

// enqueue queue msg for this client only, false if the client is gone or its queue is full
func (c *Client) enqueue(msg Message) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
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

// closeSend caller holds hub.mu for writing
func (c *Client) closeSend() {
	if !c.closed {
		c.closed = true
		close(c.send)
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
			b, err := json.Marshal(message)
			if err != nil {
				c.logger.Error("failed to encode frame", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.logger.Debug("failed to write frame", zap.Error(err))
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
