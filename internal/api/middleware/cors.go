package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// defaultOrigin is allowed when no origins are configured.
const defaultOrigin = "http://localhost:3000"

// SecureCORS returns CORS middleware for the given origins.
// Does NOT allow wildcard (*) origin in production.
func SecureCORS(origins []string, production bool) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: AllowedOrigins(origins, production),
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-Idempotency-Key",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// AllowedOrigins trims the configured origins, drops "*" in production and
// falls back to the local development origin when nothing is left.
func AllowedOrigins(origins []string, production bool) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" || (production && origin == "*") {
			continue
		}
		out = append(out, origin)
	}
	if len(out) == 0 {
		out = []string{defaultOrigin}
	}
	return out
}
