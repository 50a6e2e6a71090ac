// Package api assembles the provider's HTTP surface.
package api

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/aap/internal/api/handlers"
	"github.com/welldanyogia/aap/internal/api/middleware"
	"github.com/welldanyogia/aap/internal/api/response"
	"github.com/welldanyogia/aap/internal/intake"
	"github.com/welldanyogia/aap/internal/logger"
	"github.com/welldanyogia/aap/internal/repository"
	"github.com/welldanyogia/aap/internal/websocket"
	"github.com/welldanyogia/aap/pkg/protocol"
	"golang.org/x/time/rate"
)

// DefaultBodyLimit caps request bodies when RouterConfig.BodyLimit is empty.
const DefaultBodyLimit = "1M"

// limiterCleanupInterval is how often idle per-IP limiters are evicted.
const limiterCleanupInterval = time.Minute

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	Agents repository.AgentRepository
	Intake *intake.Service
	// Hub enables the inbox stream route when set
	Hub          *websocket.Hub
	HealthChecks map[string]handlers.Checker
	Info         protocol.ProviderInfo
	Logger       *slog.Logger

	// Domain restricts registration and the public feed to this provider
	// (empty = accept any)
	Domain string
	// PublicBaseURL prefixes resolved inbox URLs (empty = request origin)
	PublicBaseURL string

	// Security configuration
	AllowedOrigins []string // Allowed CORS and websocket origins
	Production     bool     // Drop wildcard origins
	RateLimit      float64  // Requests per second per IP (0 = disabled)
	RateBurst      int      // Burst size for rate limiter
	BodyLimit      string   // e.g. "1M"
	// Stop ends background maintenance started by the router
	Stop <-chan struct{}
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	sec := logger.NewSecurityLoggerFrom(log)
	origins := middleware.AllowedOrigins(cfg.AllowedOrigins, cfg.Production)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.HTTPErrorHandler(log)

	// Security Middleware (applied in correct order)
	// 1. Recover from panics
	e.Use(middleware.Recover())

	// 2. Security headers (applied to all responses)
	e.Use(middleware.SecureHeaders())

	// 3. CORS
	e.Use(middleware.SecureCORS(origins, cfg.Production))

	// 4. Request logging, outside the limiter so throttled calls are logged
	e.Use(middleware.RequestLogger(log))

	// 5. Rate limiting
	if cfg.RateLimit > 0 {
		limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
		if cfg.Stop != nil {
			limiter.StartCleanup(limiterCleanupInterval, cfg.Stop)
		}
		e.Use(middleware.RateLimiter(limiter, sec))
	}

	// 6. Body size
	bodyLimit := cfg.BodyLimit
	if bodyLimit == "" {
		bodyLimit = DefaultBodyLimit
	}
	e.Use(middleware.BodyLimit(bodyLimit))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	infoHandler := handlers.NewInfoHandler(cfg.Info)
	agentHandler := handlers.NewAgentHandler(cfg.Agents, cfg.Domain, log)
	resolveHandler := handlers.NewResolveHandler(cfg.Agents, cfg.Domain, cfg.PublicBaseURL, cfg.Info.Capabilities)
	inboxHandler := handlers.NewInboxHandler(cfg.Intake, sec)
	auth := middleware.BearerAuth(cfg.Agents, sec)

	// Health and discovery routes (no auth required)
	e.GET("/", infoHandler.Index)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
	e.GET(protocol.PathProviderInfo, infoHandler.ProviderInfo)

	// Protocol routes
	e.POST(protocol.PathRegister, agentHandler.Register)
	e.GET(protocol.PathResolve, resolveHandler.Resolve)
	e.POST(protocol.PathInbox+"/:owner_role", inboxHandler.Deliver)
	e.GET(protocol.PathInbox, inboxHandler.List, auth)
	e.GET(protocol.PathFeed, inboxHandler.Feed)

	if cfg.Hub != nil {
		upgrader := websocket.NewSecureUpgrader(origins, sec)
		streamHandler := handlers.NewStreamHandler(cfg.Hub, upgrader, log)
		e.GET(protocol.PathInboxStream, streamHandler.Stream, auth)
	}

	return e
}
