package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/welldanyogia/aap/pkg/address"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256
)

// Client is one authenticated stream. It always follows its own inbox and
// may additionally follow the provider's public feed.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	inbox  string
	send   chan []byte
	logger *slog.Logger
}

// NewClient creates a new Client for the agent owning inbox.
func NewClient(hub *Hub, conn *websocket.Conn, inbox string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		hub:    hub,
		conn:   conn,
		inbox:  inbox,
		send:   make(chan []byte, sendBuffer),
		logger: logger,
	}
}

// Serve registers the client, subscribes it to its own inbox and runs both
// pumps. It returns when the connection closes.
func (c *Client) Serve() {
	c.hub.Register(c)
	c.hub.Subscribe(c, c.inbox)
	c.ack(MessageTypeSubscribed, c.inbox)

	go c.WritePump()
	c.ReadPump()
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
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
				c.logger.Error("websocket read error", slog.Any("error", err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
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
				// Hub closed the channel
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

// handleMessage processes incoming WebSocket messages
func (c *Client) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		if !c.mayFollow(msg.Inbox) {
			c.sendError("only your own inbox or the public feed can be followed")
			return
		}
		c.hub.Subscribe(c, msg.Inbox)
		c.ack(MessageTypeSubscribed, msg.Inbox)

	case MessageTypeUnsubscribe:
		if msg.Inbox == "" {
			c.sendError("inbox is required")
			return
		}
		c.hub.Unsubscribe(c, msg.Inbox)

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) mayFollow(inbox string) bool {
	return inbox != "" && (inbox == c.inbox || inbox == address.FeedOwnerRole)
}

func (c *Client) ack(t MessageType, inbox string) {
	c.enqueue(WSMessage{Type: t, Inbox: inbox})
}

// sendError sends an error message to the client
func (c *Client) sendError(errMsg string) {
	c.enqueue(WSMessage{Type: MessageTypeError, Error: errMsg})
}

func (c *Client) enqueue(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
		// Buffer full, skip
	}
}
