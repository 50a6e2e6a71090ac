// Package middleware provides HTTP middleware for the AAP provider API.
package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/aap/internal/apikey"
	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/internal/logger"
	"github.com/welldanyogia/aap/internal/models"
	"github.com/welldanyogia/aap/internal/repository"
)

// agentContextKey is where BearerAuth stores the authenticated agent.
const agentContextKey = "aap.agent"

// BearerAuth authenticates the caller by its agent API key. Only the SHA-256
// of the presented key is looked up, so stored hashes are compared by the
// database rather than in process memory.
func BearerAuth(agents repository.AgentRepository, sec *logger.SecurityLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				if sec != nil {
					sec.AuthFailure(c.RealIP(), path, "missing_authorization")
				}
				return apperrors.New(apperrors.ErrAuthenticationRequired, "Authorization header with a Bearer API key is required")
			}

			token, ok := apikey.FromAuthorization(header)
			if !ok {
				if sec != nil {
					sec.SuspiciousActivity(c.RealIP(), path, "malformed_authorization")
				}
				return apperrors.New(apperrors.ErrAuthenticationFailed, "Invalid API key")
			}

			agent, err := agents.GetByAPIKeyHash(c.Request().Context(), apikey.Hash(token))
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					if sec != nil {
						sec.AuthFailure(c.RealIP(), path, "invalid_key")
					}
					return apperrors.New(apperrors.ErrAuthenticationFailed, "Invalid API key")
				}
				return err
			}

			c.Set(agentContextKey, agent)
			return next(c)
		}
	}
}

// AgentFromContext returns the agent authenticated by BearerAuth.
func AgentFromContext(c echo.Context) (*models.Agent, bool) {
	agent, ok := c.Get(agentContextKey).(*models.Agent)
	return agent, ok && agent != nil
}
