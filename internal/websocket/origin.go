package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/welldanyogia/aap/internal/logger"
)

// defaultOrigin is allowed when no origins are configured.
const defaultOrigin = "http://localhost:3000"

// NewSecureUpgrader creates a WebSocket upgrader that only accepts browser
// connections from allowedOrigins. Requests without an Origin header (agents,
// same-origin) are always accepted.
func NewSecureUpgrader(allowedOrigins []string, sec *logger.SecurityLogger) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = true
		}
	}
	if len(allowed) == 0 {
		allowed[defaultOrigin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}

			if sec != nil {
				sec.InvalidOrigin(r.RemoteAddr, origin)
			}
			return false
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}
