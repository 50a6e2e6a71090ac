package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/aap/pkg/protocol"
)

func TestInfoHandler(t *testing.T) {
	h := NewInfoHandler(protocol.ProviderInfo{
		Name:         "Molten AAP",
		Version:      protocol.ServedVersion,
		Domain:       "molten.com",
		Capabilities: map[string]bool{protocol.CapabilityWebSocket: true},
	})
	e := echo.New()
	e.GET("/", h.Index)
	e.GET(protocol.PathProviderInfo, h.ProviderInfo)

	t.Run("index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var idx IndexResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idx))
		assert.Equal(t, "Molten AAP", idx.Name)
		assert.Equal(t, "0.04", idx.Version)
		assert.Equal(t, "/api/agent/register", idx.Endpoints["register"])
		assert.Equal(t, "/api/v1/inbox/{owner_role}", idx.Endpoints["receive"])
	})

	t.Run("provider info", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, protocol.PathProviderInfo, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var info protocol.ProviderInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "molten.com", info.Domain)
		assert.True(t, info.Capabilities[protocol.CapabilityWebSocket])
		assert.Equal(t, protocol.PathInboxStream, info.Endpoints["stream"])
	})
}
