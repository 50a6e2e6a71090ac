package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/aap/pkg/address"
)

func marshal(t *testing.T, msg WSMessage) []byte {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return data
}

func TestNewClient(t *testing.T) {
	hub := NewHub(nil)
	client := NewClient(hub, nil, "bob~main", nil)

	assert.Equal(t, hub, client.hub)
	assert.Equal(t, "bob~main", client.inbox)
	assert.Equal(t, sendBuffer, cap(client.send))
	assert.NotNil(t, client.logger)
}

func TestClient_HandleMessage_SubscribeToFeed(t *testing.T) {
	hub := startHub(t)
	client := NewClient(hub, nil, "bob~main", nil)
	hub.Register(client)

	client.handleMessage(marshal(t, WSMessage{Type: MessageTypeSubscribe, Inbox: address.FeedOwnerRole}))

	got := receive(t, client)
	assert.Equal(t, MessageTypeSubscribed, got.Type)
	assert.Eventually(t, func() bool { return hub.Subscribers(address.FeedOwnerRole) == 1 }, time.Second, 5*time.Millisecond)
}

func TestClient_HandleMessage_RejectsForeignInbox(t *testing.T) {
	hub := NewHub(nil)
	client := NewClient(hub, nil, "bob~main", nil)

	client.handleMessage(marshal(t, WSMessage{Type: MessageTypeSubscribe, Inbox: "carol~main"}))

	got := receive(t, client)
	assert.Equal(t, MessageTypeError, got.Type)
	assert.Contains(t, got.Error, "own inbox")
}

func TestClient_HandleMessage_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"invalid json", []byte("invalid json"), "invalid message format"},
		{"unknown type", []byte(`{"type":"unknown_type"}`), "unknown message type"},
		{"unsubscribe without inbox", []byte(`{"type":"unsubscribe"}`), "inbox is required"},
		{"subscribe without inbox", []byte(`{"type":"subscribe"}`), "own inbox"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(NewHub(nil), nil, "bob~main", nil)

			client.handleMessage(tt.data)

			got := receive(t, client)
			assert.Equal(t, MessageTypeError, got.Type)
			assert.Contains(t, got.Error, tt.want)
		})
	}
}

func TestClient_SendErrorDropsWhenBufferFull(t *testing.T) {
	client := NewClient(NewHub(nil), nil, "bob~main", nil)

	assert.NotPanics(t, func() {
		for i := 0; i < sendBuffer+10; i++ {
			client.sendError("test error")
		}
	})
	assert.Len(t, client.send, sendBuffer)
}

func TestMessageTypes_AreCorrectValues(t *testing.T) {
	assert.Equal(t, MessageType("subscribe"), MessageTypeSubscribe)
	assert.Equal(t, MessageType("unsubscribe"), MessageTypeUnsubscribe)
	assert.Equal(t, MessageType("subscribed"), MessageTypeSubscribed)
	assert.Equal(t, MessageType("new_message"), MessageTypeNewMessage)
	assert.Equal(t, MessageType("error"), MessageTypeError)
}
