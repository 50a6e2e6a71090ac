package handlers

import (
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/aap/internal/api/middleware"
	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/internal/websocket"
)

// StreamHandler upgrades authenticated agents to a push stream of their inbox
type StreamHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(hub *websocket.Hub, upgrader gorillaws.Upgrader, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{hub: hub, upgrader: upgrader, logger: logger}
}

// Stream handles GET /api/v1/inbox/stream. The call blocks for the lifetime
// of the connection.
func (h *StreamHandler) Stream(c echo.Context) error {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		return apperrors.New(apperrors.ErrAuthenticationRequired, "Authentication required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the failure response
		h.logger.Warn("websocket upgrade failed",
			slog.String("inbox", agent.OwnerRole),
			slog.Any("error", err))
		return nil
	}

	h.logger.Info("inbox stream opened", slog.String("inbox", agent.OwnerRole))
	websocket.NewClient(h.hub, conn, agent.OwnerRole, h.logger).Serve()
	h.logger.Info("inbox stream closed", slog.String("inbox", agent.OwnerRole))
	return nil
}
