package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/aap/internal/api/response"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// InfoHandler describes this provider
type InfoHandler struct {
	info protocol.ProviderInfo
}

// NewInfoHandler creates a new InfoHandler
func NewInfoHandler(info protocol.ProviderInfo) *InfoHandler {
	if info.Endpoints == nil {
		info.Endpoints = DefaultEndpoints()
	}
	return &InfoHandler{info: info}
}

// DefaultEndpoints lists the public routes of the provider.
func DefaultEndpoints() map[string]string {
	return map[string]string{
		"register": protocol.PathRegister,
		"resolve":  protocol.PathResolve,
		"receive":  protocol.PathInbox + "/{owner_role}",
		"inbox":    protocol.PathInbox,
		"stream":   protocol.PathInboxStream,
		"feed":     protocol.PathFeed,
		"info":     protocol.PathProviderInfo,
	}
}

// IndexResponse is served at /
type IndexResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Index handles GET /
func (h *InfoHandler) Index(c echo.Context) error {
	return response.OK(c, IndexResponse{
		Name:      h.info.Name,
		Version:   h.info.Version,
		Endpoints: h.info.Endpoints,
	})
}

// ProviderInfo handles GET /api/v1/providers/info
func (h *InfoHandler) ProviderInfo(c echo.Context) error {
	return response.OK(c, h.info)
}
