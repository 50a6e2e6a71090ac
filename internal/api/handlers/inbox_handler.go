package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/aap/internal/api/middleware"
	"github.com/welldanyogia/aap/internal/api/response"
	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/internal/intake"
	"github.com/welldanyogia/aap/internal/logger"
	"github.com/welldanyogia/aap/internal/validator"
	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// InboxHandler handles delivery into and reads from local inboxes
type InboxHandler struct {
	intake *intake.Service
	sec    *logger.SecurityLogger
}

// NewInboxHandler creates a new InboxHandler
func NewInboxHandler(svc *intake.Service, sec *logger.SecurityLogger) *InboxHandler {
	return &InboxHandler{intake: svc, sec: sec}
}

// Deliver handles POST /api/v1/inbox/:owner_role
func (h *InboxHandler) Deliver(c echo.Context) error {
	var body protocol.Body
	if err := decodeJSON(c, &body); err != nil {
		return err
	}

	key := c.Request().Header.Get(protocol.IdempotencyHeader)
	if err := validator.ValidateIdempotencyKey(key); err != nil {
		if h.sec != nil {
			h.sec.SecurityEvent("invalid_idempotency_key", c.RealIP(), map[string]string{
				"path":            c.Request().URL.Path,
				"reason":          err.Error(),
				"idempotency_key": key,
			})
		}
		return apperrors.NewAppError(err, "Invalid "+protocol.IdempotencyHeader+": "+err.Error(), apperrors.CodeInvalidRequest)
	}
	if err := validator.ValidateContentType(body.Envelope.ContentType); err != nil {
		return apperrors.NewAppError(err, "Invalid envelope.content_type", apperrors.CodeInvalidRequest)
	}

	receipt, err := h.intake.Receive(c.Request().Context(), intake.Request{
		Recipient:      c.Param("owner_role"),
		Body:           body,
		IdempotencyKey: key,
		RequestHost:    c.Request().Host,
	})
	if err != nil {
		if apperrors.GetErrorCode(err) == apperrors.CodeWrongProvider && h.sec != nil {
			h.sec.MisroutedDelivery(c.RealIP(), c.Request().Host, body.Envelope.ToAddr.String())
		}
		return err
	}

	return response.Created(c, protocol.DeliveryReceipt{
		Success:   true,
		Message:   "Message received",
		MessageID: receipt.MessageID,
		Duplicate: receipt.Duplicate,
	})
}

// List handles GET /api/v1/inbox for the authenticated agent
func (h *InboxHandler) List(c echo.Context) error {
	agent, ok := middleware.AgentFromContext(c)
	if !ok {
		return apperrors.New(apperrors.ErrAuthenticationRequired, "Authentication required")
	}
	return h.page(c, agent.OwnerRole)
}

// Feed handles GET /api/v1/feed, the provider's public messages
func (h *InboxHandler) Feed(c echo.Context) error {
	return h.page(c, address.FeedOwnerRole)
}

func (h *InboxHandler) page(c echo.Context, recipient string) error {
	msgs, err := h.intake.Inbox(c.Request().Context(), recipient, validator.ParseLimit(c.QueryParam("limit")))
	if err != nil {
		return err
	}
	if msgs == nil {
		msgs = []protocol.StoredMessage{}
	}
	return response.OK(c, protocol.InboxPage{Messages: msgs, Count: len(msgs)})
}
