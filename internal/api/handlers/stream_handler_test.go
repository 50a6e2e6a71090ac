package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/aap/internal/api/middleware"
	"github.com/welldanyogia/aap/internal/api/response"
	"github.com/welldanyogia/aap/internal/apikey"
	"github.com/welldanyogia/aap/internal/logger"
	"github.com/welldanyogia/aap/internal/models"
	"github.com/welldanyogia/aap/internal/repository"
	"github.com/welldanyogia/aap/internal/websocket"
	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

func TestStreamHandler_PushesToOwnInbox(t *testing.T) {
	agents := repository.NewMemoryAgentRepository()
	require.NoError(t, agents.Create(context.Background(), &models.Agent{
		Address:    "ai:bob~main#b.example",
		OwnerRole:  "bob~main",
		Provider:   "b.example",
		APIKeyHash: apikey.Hash(bobKey),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := websocket.NewHub(logger.Discard())
	go hub.Run(ctx)

	e := echo.New()
	e.HTTPErrorHandler = response.HTTPErrorHandler(nil)
	h := NewStreamHandler(hub, websocket.NewSecureUpgrader(nil, nil), logger.Discard())
	e.GET(protocol.PathInboxStream, h.Stream, middleware.BearerAuth(agents, nil))

	srv := httptest.NewServer(e)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + protocol.PathInboxStream

	// no credential: plain 401 before any upgrade
	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set(echo.HeaderAuthorization, "Bearer "+bobKey)
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ack websocket.WSMessage
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, websocket.MessageTypeSubscribed, ack.Type)
	assert.Equal(t, "bob~main", ack.Inbox)

	hub.NotifyMessage("bob~main", protocol.StoredMessage{
		ID: "m-1",
		Envelope: protocol.NewEnvelope(
			address.MustParse("ai:alice~main#a.example"),
			address.MustParse("ai:bob~main#b.example"),
		),
		Payload: protocol.Payload{Content: "ping"},
	})

	var pushed websocket.WSMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, websocket.MessageTypeNewMessage, pushed.Type)
	require.NotNil(t, pushed.Message)
	assert.Equal(t, "ping", pushed.Message.Payload.Content)
}
