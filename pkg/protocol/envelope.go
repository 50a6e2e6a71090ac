package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/aap/pkg/address"
)

// Envelope validation errors.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrFieldTooLong       = errors.New("field too long")
)

// Length limits for free-form envelope fields.
const (
	MaxReplyToLength   = 64
	MaxTimestampLength = 64
)

// MessageType distinguishes point-to-point from broadcast messages.
type MessageType string

const (
	MessageTypePrivate MessageType = "private"
	MessageTypePublic  MessageType = "public"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypePrivate || t == MessageTypePublic
}

// DefaultContentType is used when an envelope names none.
const DefaultContentType = "text/plain"

// Envelope is the routing header of a message.
type Envelope struct {
	FromAddr    address.Address `json:"from_addr"`
	ToAddr      address.Address `json:"to_addr"`
	MessageType MessageType     `json:"message_type"`
	ReplyTo     string          `json:"reply_to,omitempty"`
	ContentType string          `json:"content_type"`
	Timestamp   string          `json:"timestamp"`
}

// EnvelopeOption customizes NewEnvelope.
type EnvelopeOption func(*Envelope)

// WithMessageType sets the message type.
func WithMessageType(t MessageType) EnvelopeOption {
	return func(e *Envelope) { e.MessageType = t }
}

// WithReplyTo marks the envelope as a reply to messageID.
func WithReplyTo(messageID string) EnvelopeOption {
	return func(e *Envelope) { e.ReplyTo = messageID }
}

// WithContentType sets the MIME type of the payload content.
func WithContentType(ct string) EnvelopeOption {
	return func(e *Envelope) { e.ContentType = ct }
}

// WithTimestamp overrides the construction time.
func WithTimestamp(t time.Time) EnvelopeOption {
	return func(e *Envelope) { e.Timestamp = FormatTimestamp(t) }
}

// NewEnvelope builds an envelope stamped with the current UTC time.
func NewEnvelope(from, to address.Address, opts ...EnvelopeOption) Envelope {
	e := Envelope{
		FromAddr:    from,
		ToAddr:      to,
		MessageType: MessageTypePrivate,
		ContentType: DefaultContentType,
		Timestamp:   FormatTimestamp(time.Now()),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Normalize fills defaults for an envelope decoded off the wire.
func (e *Envelope) Normalize() {
	if e.MessageType == "" {
		e.MessageType = MessageTypePrivate
	}
	if e.ContentType == "" {
		e.ContentType = DefaultContentType
	}
}

// Validate checks required fields and the message type.
func (e Envelope) Validate() error {
	if e.FromAddr.IsZero() {
		return fmt.Errorf("%w: envelope.from_addr", ErrMissingField)
	}
	if e.ToAddr.IsZero() {
		return fmt.Errorf("%w: envelope.to_addr", ErrMissingField)
	}
	if e.MessageType != "" && !e.MessageType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMessageType, e.MessageType)
	}
	if len(e.ReplyTo) > MaxReplyToLength {
		return fmt.Errorf("%w: envelope.reply_to exceeds %d characters", ErrFieldTooLong, MaxReplyToLength)
	}
	if len(e.Timestamp) > MaxTimestampLength {
		return fmt.Errorf("%w: envelope.timestamp exceeds %d characters", ErrFieldTooLong, MaxTimestampLength)
	}
	return nil
}

// Payload is the message content.
type Payload struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Body is the inbox delivery request body.
type Body struct {
	Envelope Envelope `json:"envelope"`
	Payload  Payload  `json:"payload"`
}

// StoredMessage is a message accepted into an inbox.
type StoredMessage struct {
	ID         string    `json:"id"`
	Envelope   Envelope  `json:"envelope"`
	Payload    Payload   `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
