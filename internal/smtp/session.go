package smtp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"

	"github.com/welldanyogia/aap/internal/intake"
	"github.com/welldanyogia/aap/internal/repository"
	"github.com/welldanyogia/aap/internal/validator"
	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// Bridge sender identity
const (
	PostmasterOwner = "postmaster"
	PostmasterRole  = "smtp"
)

var (
	errTemporary = &smtp.SMTPError{
		Code:         451,
		EnhancedCode: smtp.EnhancedCode{4, 3, 0},
		Message:      "Temporary error",
	}
	errNoRecipients = &smtp.SMTPError{
		Code:         503,
		EnhancedCode: smtp.EnhancedCode{5, 5, 1},
		Message:      "No recipients specified",
	}
)

func rejectRecipient(msg string) *smtp.SMTPError {
	return &smtp.SMTPError{
		Code:         550,
		EnhancedCode: smtp.EnhancedCode{5, 1, 1},
		Message:      msg,
	}
}

// Session implements the go-smtp Session interface
type Session struct {
	backend    *Backend
	from       string
	recipients []address.Address
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend) *Session {
	return &Session{backend: backend}
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	// empty reverse path is a bounce
	if from != "" {
		if err := validator.ValidateEmail(from); err != nil {
			return &smtp.SMTPError{
				Code:         501,
				EnhancedCode: smtp.EnhancedCode{5, 1, 7},
				Message:      "Invalid sender address",
			}
		}
	}
	s.from = from
	s.backend.logger.Debug("MAIL FROM", slog.String("from", from))
	return nil
}

// Rcpt accepts owner~role@domain only for agents registered on this provider.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	localPart, domainName, err := parseEmailAddress(to)
	if err != nil {
		return rejectRecipient("Invalid recipient address")
	}
	if domainName != s.backend.domain {
		return rejectRecipient("Domain not served here")
	}

	owner, role, err := address.SplitOwnerRole(localPart)
	if err != nil {
		return rejectRecipient("Recipient must be owner~role")
	}
	addr, err := address.New(owner, role, domainName)
	if err != nil {
		return rejectRecipient("Invalid recipient address")
	}

	if _, err := s.backend.agents.GetByAddress(context.Background(), addr.String()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return rejectRecipient("Agent not found")
		}
		s.backend.logger.Error("agent lookup failed", slog.String("address", addr.String()), slog.Any("error", err))
		return errTemporary
	}

	for _, r := range s.recipients {
		if r.Equal(addr) {
			return nil
		}
	}
	s.recipients = append(s.recipients, addr)
	s.backend.logger.Debug("RCPT TO", slog.String("to", to), slog.String("aap_address", addr.String()))
	return nil
}

// Data parses the mail and delivers one AAP message per recipient. A failed
// delivery answers 451 so the sender retries; the Message-ID idempotency key
// collapses the recipients that already succeeded.
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return errNoRecipients
	}

	parsedEmail, err := ParseEmail(r)
	if err != nil {
		s.backend.logger.Error("failed to parse email", slog.Any("error", err))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Failed to parse email",
		}
	}

	// Override sender from envelope if not in headers
	if parsedEmail.SenderEmail == "" {
		parsedEmail.SenderEmail = s.from
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.timeout)
	defer cancel()

	failed := 0
	for _, recipient := range s.recipients {
		if err := s.deliver(ctx, recipient, parsedEmail); err != nil {
			failed++
			s.backend.logger.Error("failed to deliver email",
				slog.String("recipient", recipient.String()),
				slog.Any("error", err))
		}
	}

	s.backend.logger.Info("email received",
		slog.String("from", s.from),
		slog.Int("recipients", len(s.recipients)),
		slog.Int("failed", failed),
		slog.String("subject", parsedEmail.Subject))

	if failed > 0 {
		return errTemporary
	}
	return nil
}

// deliver hands the mail to the intake for a single recipient
func (s *Session) deliver(ctx context.Context, recipient address.Address, email *ParsedEmail) error {
	from, err := address.New(PostmasterOwner, PostmasterRole, s.backend.domain)
	if err != nil {
		return fmt.Errorf("bridge sender address: %w", err)
	}

	key := email.MessageID
	if validator.ValidateIdempotencyKey(key) != nil {
		key = ""
	}

	receipt, err := s.backend.intake.Receive(ctx, intake.Request{
		Recipient: recipient.OwnerRole(),
		Body: protocol.Body{
			Envelope: protocol.NewEnvelope(from, recipient,
				protocol.WithMessageType(protocol.MessageTypePrivate),
				protocol.WithContentType(protocol.DefaultContentType),
			),
			Payload: protocol.Payload{
				Content:  email.Content(),
				Metadata: email.Metadata(s.from),
			},
		},
		IdempotencyKey: key,
		RequestHost:    s.backend.domain,
	})
	if err != nil {
		return err
	}

	s.backend.logger.Debug("email delivered",
		slog.String("recipient", recipient.String()),
		slog.String("message_id", receipt.MessageID),
		slog.Bool("duplicate", receipt.Duplicate))
	return nil
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.recipients = nil
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

// parseEmailAddress splits an address into local part and lower-cased
// domain. The local part keeps its case because AAP owners and roles do.
func parseEmailAddress(address string) (localPart, domain string, err error) {
	// Remove angle brackets if present
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")

	at := strings.LastIndex(address, "@")
	if at < 0 {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	localPart = address[:at]
	domain = strings.ToLower(address[at+1:])

	if localPart == "" || domain == "" || strings.Contains(localPart, "@") {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	return localPart, domain, nil
}
