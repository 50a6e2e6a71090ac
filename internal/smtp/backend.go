// Package smtp bridges inbound mail into AAP inboxes. Mail addressed to
// owner~role@domain is delivered to ai:owner~role#domain when that agent is
// registered here.
package smtp

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-smtp"

	"github.com/welldanyogia/aap/internal/intake"
	"github.com/welldanyogia/aap/internal/repository"
)

// Security limits
const (
	DefaultMaxMessageSize = 10 * 1024 * 1024 // 10 MB
	DefaultMaxRecipients  = 50
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxLineLength  = 2000
	// DefaultDeliveryTimeout bounds the intake work for one DATA command.
	DefaultDeliveryTimeout = 30 * time.Second
)

// Receiver stores one delivery. *intake.Service implements it.
type Receiver interface {
	Receive(ctx context.Context, req intake.Request) (*intake.Receipt, error)
}

// Backend implements the go-smtp Backend interface
type Backend struct {
	agents  repository.AgentRepository
	intake  Receiver
	domain  string
	timeout time.Duration
	logger  *slog.Logger
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Agents repository.AgentRepository
	Intake Receiver
	// Domain is the mail domain and the AAP provider of every recipient.
	Domain          string
	DeliveryTimeout time.Duration
	Logger          *slog.Logger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	b := &Backend{
		agents:  cfg.Agents,
		intake:  cfg.Intake,
		domain:  strings.ToLower(cfg.Domain),
		timeout: cfg.DeliveryTimeout,
		logger:  cfg.Logger,
	}
	if b.timeout <= 0 {
		b.timeout = DefaultDeliveryTimeout
	}
	if b.logger == nil {
		b.logger = slog.New(slog.DiscardHandler)
	}
	b.logger = b.logger.With("component", "smtp")
	return b
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	b.logger.Debug("new SMTP connection", slog.String("remote_addr", c.Conn().RemoteAddr().String()))
	return NewSession(b), nil
}

// ServerConfig holds security configuration for the SMTP server
type ServerConfig struct {
	Addr           string
	Domain         string
	MaxMessageSize int64
	MaxRecipients  int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// NewSecureServer creates a new SMTP server with security settings
func NewSecureServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)

	s.Addr = cfg.Addr
	s.Domain = cfg.Domain

	// Set message size limit
	if cfg.MaxMessageSize > 0 {
		s.MaxMessageBytes = cfg.MaxMessageSize
	} else {
		s.MaxMessageBytes = DefaultMaxMessageSize
	}

	// Set recipient limit
	if cfg.MaxRecipients > 0 {
		s.MaxRecipients = cfg.MaxRecipients
	} else {
		s.MaxRecipients = DefaultMaxRecipients
	}

	// Set timeouts
	if cfg.ReadTimeout > 0 {
		s.ReadTimeout = cfg.ReadTimeout
	} else {
		s.ReadTimeout = DefaultReadTimeout
	}

	if cfg.WriteTimeout > 0 {
		s.WriteTimeout = cfg.WriteTimeout
	} else {
		s.WriteTimeout = DefaultWriteTimeout
	}

	// No AUTH is offered; the bridge only receives
	s.AllowInsecureAuth = false

	// Set max line length to prevent buffer overflow attacks
	s.MaxLineLength = DefaultMaxLineLength

	return s
}
