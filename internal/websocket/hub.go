// Package websocket pushes newly delivered AAP messages to agents holding an
// open stream on their inbox.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/welldanyogia/aap/pkg/protocol"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeNewMessage  MessageType = "new_message"
	MessageTypeError       MessageType = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    MessageType             `json:"type"`
	Inbox   string                  `json:"inbox,omitempty"`
	Message *protocol.StoredMessage `json:"message,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// Hub maintains the set of active clients and fans out new messages to the
// clients subscribed to the receiving inbox.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Inbox subscriptions: owner~role -> set of clients
	subscriptions map[string]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage

	// closed when Run returns
	done chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

type subscriptionRequest struct {
	client *Client
	inbox  string
}

type broadcastMessage struct {
	inbox   string
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *broadcastMessage, 256),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[*Client]bool)
			h.subscriptions = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", slog.String("inbox", client.inbox))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for inbox, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, inbox)
					}
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", slog.String("inbox", client.inbox))

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.clients[req.client] {
				if h.subscriptions[req.inbox] == nil {
					h.subscriptions[req.inbox] = make(map[*Client]bool)
				}
				h.subscriptions[req.inbox][req.client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", slog.String("inbox", req.inbox))

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.inbox]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.inbox)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", slog.String("inbox", req.inbox))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.subscriptions[msg.inbox] {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
					h.logger.Warn("dropping push for slow client", slog.String("inbox", msg.inbox))
				}
			}
			h.mu.RUnlock()
		}
	}
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

// Subscribe subscribes a client to an inbox
func (h *Hub) Subscribe(client *Client, inbox string) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, inbox: inbox}:
	case <-h.done:
	}
}

// Unsubscribe unsubscribes a client from an inbox
func (h *Hub) Unsubscribe(client *Client, inbox string) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, inbox: inbox}:
	case <-h.done:
	}
}

// Subscribers returns the number of clients subscribed to inbox.
func (h *Hub) Subscribers(inbox string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[inbox])
}

// NotifyMessage queues msg for the subscribers of recipient. It never blocks
// the caller: when the queue is full the push is dropped, the message itself
// is already stored and can be fetched.
func (h *Hub) NotifyMessage(recipient string, msg protocol.StoredMessage) {
	data, err := json.Marshal(WSMessage{
		Type:    MessageTypeNewMessage,
		Inbox:   recipient,
		Message: &msg,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{inbox: recipient, message: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping push",
			slog.String("inbox", recipient),
			slog.String("message_id", msg.ID))
	}
}
