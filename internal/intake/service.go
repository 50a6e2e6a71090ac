// Package intake accepts inbound deliveries for local inboxes: it checks the
// envelope, confirms the destination belongs to this provider, collapses
// retries that share an idempotency key and appends the message.
package intake

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/welldanyogia/aap/internal/errors"
	"github.com/welldanyogia/aap/internal/idempotency"
	"github.com/welldanyogia/aap/internal/repository"
	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// Notifier is told about every newly stored message.
type Notifier interface {
	NotifyMessage(recipient string, msg protocol.StoredMessage)
}

// Request is one inbound delivery.
type Request struct {
	// Recipient is the inbox key "owner~role" taken from the delivery path.
	Recipient      string
	Body           protocol.Body
	IdempotencyKey string
	// RequestHost is the host the delivery was sent to, port included.
	RequestHost string
}

// Receipt describes the outcome of an accepted delivery. Duplicate is set
// when the idempotency key had already produced MessageID.
type Receipt struct {
	MessageID string
	Duplicate bool
}

// Config holds Service options.
type Config struct {
	// StrictProviderMatch requires the to_addr provider to equal the request
	// host instead of merely containing it.
	StrictProviderMatch bool
	Logger              *slog.Logger
	Notifier            Notifier
	Now                 func() time.Time
	NewID               func() string
}

// Service is the provider intake.
type Service struct {
	inbox  repository.InboxRepository
	idem   idempotency.Store
	locks  *keyedMutex
	strict bool
	logger *slog.Logger
	notify Notifier
	now    func() time.Time
	newID  func() string
}

// NewService creates a Service.
func NewService(inbox repository.InboxRepository, idem idempotency.Store, cfg Config) *Service {
	s := &Service{
		inbox:  inbox,
		idem:   idem,
		locks:  newKeyedMutex(),
		strict: cfg.StrictProviderMatch,
		logger: cfg.Logger,
		notify: cfg.Notifier,
		now:    cfg.Now,
		newID:  cfg.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Receive validates and stores one delivery. All state changes for a
// recipient happen under that recipient's lock.
func (s *Service) Receive(ctx context.Context, req Request) (*Receipt, error) {
	if req.Recipient == "" {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidRequest, "Missing recipient", apperrors.CodeInvalidRequest)
	}
	if _, _, err := address.SplitOwnerRole(req.Recipient); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrInvalidRequest, "Recipient must be owner~role", apperrors.CodeInvalidRequest)
	}

	env := req.Body.Envelope
	if err := env.Validate(); err != nil {
		s.logger.Info("delivery rejected",
			"recipient", req.Recipient,
			"reason", apperrors.CodeMissingField,
			"error", err.Error(),
		)
		if errors.Is(err, protocol.ErrMissingField) {
			return nil, apperrors.NewAppError(err, "Missing envelope.from_addr or envelope.to_addr", apperrors.CodeMissingField)
		}
		return nil, apperrors.NewAppError(err, err.Error(), apperrors.CodeInvalidRequest)
	}

	if !s.ownsDestination(env, req.RequestHost) {
		s.logger.Warn("delivery rejected",
			"recipient", req.Recipient,
			"reason", apperrors.CodeWrongProvider,
			"to_addr", env.ToAddr.String(),
			"host", req.RequestHost,
		)
		return nil, apperrors.NewAppError(apperrors.ErrWrongProvider, "Address does not belong to this provider", apperrors.CodeWrongProvider)
	}
	if env.ToAddr.OwnerRole() != req.Recipient {
		s.logger.Warn("delivery rejected",
			"recipient", req.Recipient,
			"reason", "recipient_mismatch",
			"to_addr", env.ToAddr.String(),
		)
		return nil, apperrors.NewAppError(apperrors.ErrInvalidRequest, "envelope.to_addr does not match the delivery path", apperrors.CodeInvalidRequest)
	}

	env.Normalize()
	unlock := s.locks.Lock(req.Recipient)
	defer unlock()

	msg := protocol.StoredMessage{
		ID:         s.newID(),
		Envelope:   env,
		Payload:    req.Body.Payload,
		ReceivedAt: s.now().UTC(),
	}

	if req.IdempotencyKey != "" {
		winner, claimed, err := s.idem.Claim(ctx, req.Recipient, req.IdempotencyKey, msg.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, "claim idempotency key")
		}
		if !claimed {
			s.logger.Info("duplicate delivery collapsed",
				"recipient", req.Recipient,
				"message_id", winner,
				"from", env.FromAddr.String(),
			)
			return &Receipt{MessageID: winner, Duplicate: true}, nil
		}
	}

	if err := s.inbox.Append(ctx, req.Recipient, msg); err != nil {
		if req.IdempotencyKey != "" {
			// context may already be done; the release must still happen
			if relErr := s.idem.Release(context.WithoutCancel(ctx), req.Recipient, req.IdempotencyKey, msg.ID); relErr != nil {
				s.logger.Error("failed to release idempotency key",
					"recipient", req.Recipient,
					"message_id", msg.ID,
					"error", relErr.Error(),
				)
			}
		}
		return nil, apperrors.Wrap(err, "append to inbox "+req.Recipient)
	}

	s.logger.Info("delivery accepted",
		"recipient", req.Recipient,
		"message_id", msg.ID,
		"from", env.FromAddr.String(),
		"message_type", string(env.MessageType),
		"idempotent", req.IdempotencyKey != "",
	)

	if s.notify != nil {
		s.notify.NotifyMessage(req.Recipient, msg)
	}
	return &Receipt{MessageID: msg.ID}, nil
}

// Inbox returns the most recent limit messages of recipient, oldest first.
// limit <= 0 means protocol.DefaultInboxLimit; larger than
// protocol.MaxInboxLimit is capped.
func (s *Service) Inbox(ctx context.Context, recipient string, limit int) ([]protocol.StoredMessage, error) {
	if limit <= 0 {
		limit = protocol.DefaultInboxLimit
	}
	if limit > protocol.MaxInboxLimit {
		limit = protocol.MaxInboxLimit
	}
	msgs, err := s.inbox.ListRecent(ctx, recipient, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "list inbox "+recipient)
	}
	return msgs, nil
}

func (s *Service) ownsDestination(env protocol.Envelope, host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if s.strict {
		return env.ToAddr.Provider == host
	}
	return strings.Contains(strings.ToLower(env.ToAddr.String()), host)
}
