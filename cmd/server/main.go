package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/welldanyogia/aap/internal/api"
	"github.com/welldanyogia/aap/internal/api/handlers"
	"github.com/welldanyogia/aap/internal/config"
	"github.com/welldanyogia/aap/internal/database"
	"github.com/welldanyogia/aap/internal/idempotency"
	"github.com/welldanyogia/aap/internal/intake"
	"github.com/welldanyogia/aap/internal/logger"
	"github.com/welldanyogia/aap/internal/repository"
	"github.com/welldanyogia/aap/internal/smtp"
	"github.com/welldanyogia/aap/internal/websocket"
	"github.com/welldanyogia/aap/pkg/protocol"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// stores is the persistence selected by configuration.
type stores struct {
	agents repository.AgentRepository
	inbox  repository.InboxRepository
	idem   idempotency.Store
	db     *gorm.DB
	rdb    *redis.Client
	checks map[string]handlers.Checker
}

func (s *stores) close() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
	if s.db != nil {
		_ = database.Close(s.db)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)
	slog.Info("Starting AAP provider...")
	cfg.LogConfig(log)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	svc := intake.NewService(st.inbox, st.idem, intake.Config{
		StrictProviderMatch: cfg.StrictProviderMatch,
		Logger:              log,
		Notifier:            hub,
	})

	startPurge(ctx, st.idem, cfg.IdempotencyTTL)

	e := api.NewRouter(&api.RouterConfig{
		Agents:       st.agents,
		Intake:       svc,
		Hub:          hub,
		HealthChecks: st.checks,
		Info: protocol.ProviderInfo{
			Name:    cfg.ProviderName,
			Version: protocol.ServedVersion,
			Domain:  cfg.ProviderDomain,
			Capabilities: map[string]bool{
				protocol.CapabilityIdempotency: true,
				protocol.CapabilityWebSocket:   true,
				protocol.CapabilityFeed:        true,
				protocol.CapabilitySMTPBridge:  cfg.SMTPEnabled,
			},
		},
		Logger:         log,
		Domain:         cfg.ProviderDomain,
		PublicBaseURL:  cfg.PublicBaseURL,
		AllowedOrigins: cfg.Origins(),
		Production:     cfg.IsProduction(),
		RateLimit:      cfg.RateLimitRequests,
		RateBurst:      cfg.RateLimitBurst,
		Stop:           ctx.Done(),
	})

	errCh := make(chan error, 2)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		slog.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var mailServer interface{ Close() error }
	if cfg.SMTPEnabled {
		backend := smtp.NewBackend(&smtp.BackendConfig{
			Agents: st.agents,
			Intake: svc,
			Domain: cfg.MailDomain(),
			Logger: log,
		})
		server := smtp.NewSecureServer(backend, &smtp.ServerConfig{
			Addr:           cfg.SMTPAddr,
			Domain:         cfg.MailDomain(),
			MaxMessageSize: cfg.SMTPMaxMessageSize,
		})
		mailServer = server
		go func() {
			slog.Info("SMTP bridge listening", slog.String("addr", cfg.SMTPAddr), slog.String("domain", cfg.MailDomain()))
			if err := server.ListenAndServe(); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("smtp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err = <-errCh:
		slog.Error("Server error, shutting down", slog.Any("error", err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if mailServer != nil {
		if cerr := mailServer.Close(); cerr != nil {
			slog.Warn("SMTP server close failed", slog.Any("error", cerr))
		}
	}
	if serr := e.Shutdown(shutdownCtx); serr != nil {
		slog.Warn("HTTP server shutdown failed", slog.Any("error", serr))
	}

	slog.Info("Server stopped")
	return err
}

// openStores builds the registry, the inboxes and the idempotency store for
// the configured drivers.
func openStores(cfg *config.Config) (*stores, error) {
	st := &stores{checks: map[string]handlers.Checker{}}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		st.agents = repository.NewMemoryAgentRepository()
		st.inbox = repository.NewMemoryInboxRepository()
	default:
		db, err := database.Connect(cfg.StoreDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.db = db
		if err := database.Migrate(db); err != nil {
			st.close()
			return nil, err
		}
		st.agents = repository.NewAgentRepository(db)
		st.inbox = repository.NewInboxRepository(db)
		st.checks["database"] = handlers.DBChecker(db)
	}

	switch cfg.IdempotencyBackend {
	case config.IdempotencyRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		st.rdb = redis.NewClient(opts)
		store := idempotency.NewRedisStore(st.rdb, cfg.IdempotencyTTL)
		st.idem = store
		st.checks["redis"] = store
	default:
		if st.db != nil {
			st.idem = idempotency.NewGormStore(st.db)
		} else {
			st.idem = idempotency.NewMemoryStore()
		}
	}

	slog.Info("stores ready",
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("idempotency_backend", cfg.IdempotencyBackend))
	return st, nil
}

// startPurge runs purgeIdempotency for database-backed stores. A zero ttl
// keeps records forever and starts nothing.
func startPurge(ctx context.Context, idem idempotency.Store, ttl time.Duration) bool {
	gs, ok := idem.(*idempotency.GormStore)
	if !ok || ttl <= 0 {
		return false
	}
	go purgeIdempotency(ctx, gs, ttl)
	return true
}

// purgeIdempotency drops database idempotency records older than ttl until
// ctx ends.
func purgeIdempotency(ctx context.Context, store *idempotency.GormStore, ttl time.Duration) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeBefore(ctx, time.Now().Add(-ttl))
			if err != nil {
				slog.Warn("idempotency purge failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				slog.Info("idempotency records purged", slog.Int64("count", n))
			}
		}
	}
}
