package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/aap/internal/api/response"
	"github.com/welldanyogia/aap/internal/apikey"
	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/internal/models"
	"github.com/welldanyogia/aap/internal/repository"
	"github.com/welldanyogia/aap/internal/validator"
	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// defaultModel is recorded when a registration names no model.
const defaultModel = "unknown"

// AgentHandler handles agent registration
type AgentHandler struct {
	agents repository.AgentRepository
	domain string
	logger *slog.Logger
}

// NewAgentHandler creates a new AgentHandler. When domain is set only
// addresses on that provider can be registered.
func NewAgentHandler(agents repository.AgentRepository, domain string, logger *slog.Logger) *AgentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentHandler{agents: agents, domain: domain, logger: logger}
}

// Register handles POST /api/agent/register
func (h *AgentHandler) Register(c echo.Context) error {
	var req protocol.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}

	addr, err := address.Parse(req.Address)
	if err != nil {
		return apperrors.New(err, err.Error())
	}
	if h.domain != "" && addr.Provider != h.domain {
		return apperrors.New(apperrors.ErrWrongProvider, "Address does not belong to this provider")
	}

	model := validator.SanitizeString(req.Model, 0)
	if err := validator.ValidateModel(model); err != nil {
		return apperrors.NewAppError(err, "Invalid model: "+err.Error(), apperrors.CodeInvalidRequest)
	}
	if model == "" {
		model = defaultModel
	}

	key, err := apikey.Generate()
	if err != nil {
		return err
	}

	agent := &models.Agent{
		Address:    addr.String(),
		OwnerRole:  addr.OwnerRole(),
		Provider:   addr.Provider,
		Model:      model,
		APIKeyHash: apikey.Hash(key),
	}
	if err := h.agents.Create(c.Request().Context(), agent); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return apperrors.New(apperrors.ErrAlreadyExists, "Agent already registered")
		}
		return err
	}

	h.logger.Info("agent registered",
		slog.String("address", agent.Address),
		slog.String("model", agent.Model))

	return response.Created(c, protocol.RegisterResponse{
		Success:  true,
		Address:  agent.Address,
		APIKey:   key,
		Provider: addr.Provider,
		Message:  "Agent registered successfully",
	})
}

// decodeJSON reads the request body into v. An absent or malformed body is
// INVALID_REQUEST; a malformed address inside it keeps its own code. c.Bind
// is not used because it binds an empty body to the zero value and reports
// address errors as a generic 400.
func decodeJSON(c echo.Context, v any) error {
	err := json.NewDecoder(c.Request().Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return apperrors.NewAppError(apperrors.ErrInvalidRequest, "Missing JSON body", apperrors.CodeInvalidRequest)
	case errors.Is(err, address.ErrInvalidAddress):
		return apperrors.New(err, err.Error())
	default:
		return apperrors.NewAppError(apperrors.ErrInvalidRequest, "Invalid JSON body", apperrors.CodeInvalidRequest)
	}
}
