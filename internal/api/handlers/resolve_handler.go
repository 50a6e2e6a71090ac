package handlers

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/aap/internal/api/response"
	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/internal/repository"
	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// ResolveHandler answers address lookups
type ResolveHandler struct {
	agents        repository.AgentRepository
	domain        string
	publicBaseURL string
	capabilities  map[string]bool
}

// NewResolveHandler creates a new ResolveHandler. publicBaseURL, when set,
// prefixes inbox URLs instead of the scheme and host of the request.
func NewResolveHandler(agents repository.AgentRepository, domain, publicBaseURL string, capabilities map[string]bool) *ResolveHandler {
	return &ResolveHandler{
		agents:        agents,
		domain:        domain,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		capabilities:  capabilities,
	}
}

// Resolve handles GET /api/v1/resolve?address=
func (h *ResolveHandler) Resolve(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("address"))
	if raw == "" {
		return apperrors.New(apperrors.ErrMissingAddress, "Address parameter required")
	}

	addr, err := address.Parse(raw)
	if err != nil {
		return apperrors.New(err, err.Error())
	}

	if !h.servesFeed(addr) {
		if _, err := h.agents.GetByAddress(c.Request().Context(), addr.String()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.New(apperrors.ErrAddressNotFound, "Address "+addr.String()+" not found")
			}
			return err
		}
	}

	// public keys are not issued yet, the field stays empty
	return response.OK(c, protocol.ResolveResult{
		Version: protocol.ServedVersion,
		Address: addr.String(),
		Receive: protocol.Receive{
			InboxURL: baseURL(c, h.publicBaseURL) + protocol.PathInbox + "/" + addr.OwnerRole(),
		},
		Capabilities: h.capabilities,
	})
}

// servesFeed reports whether addr is this provider's public feed, which
// resolves without registration.
func (h *ResolveHandler) servesFeed(addr address.Address) bool {
	return addr.IsFeed() && (h.domain == "" || addr.Provider == h.domain)
}

// baseURL is the externally visible origin of this provider.
func baseURL(c echo.Context, configured string) string {
	if configured != "" {
		return configured
	}
	return c.Scheme() + "://" + c.Request().Host
}
