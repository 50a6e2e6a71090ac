package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// InboxMessage is a StoredMessage persisted in a recipient's inbox. Seq
// gives receipt order within the table.
type InboxMessage struct {
	Seq         uint64            `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID   string            `gorm:"uniqueIndex;not null;size:36" json:"id"`
	Recipient   string            `gorm:"index;not null;size:129" json:"recipient"`
	FromAddr    string            `gorm:"not null;size:500" json:"from_addr"`
	ToAddr      string            `gorm:"not null;size:500" json:"to_addr"`
	MessageType string            `gorm:"not null;size:16" json:"message_type"`
	ReplyTo     string            `gorm:"size:64" json:"reply_to,omitempty"`
	ContentType string            `gorm:"size:255" json:"content_type"`
	Timestamp   string            `gorm:"size:64" json:"timestamp"`
	Content     string            `gorm:"type:text" json:"content"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	ReceivedAt  time.Time         `gorm:"not null" json:"received_at"`
}

// TableName returns the table name for InboxMessage
func (InboxMessage) TableName() string {
	return "inbox_messages"
}

// NewInboxMessage flattens msg into a row owned by recipient.
func NewInboxMessage(recipient string, msg protocol.StoredMessage) *InboxMessage {
	row := &InboxMessage{
		MessageID:   msg.ID,
		Recipient:   recipient,
		FromAddr:    msg.Envelope.FromAddr.String(),
		ToAddr:      msg.Envelope.ToAddr.String(),
		MessageType: string(msg.Envelope.MessageType),
		ReplyTo:     msg.Envelope.ReplyTo,
		ContentType: msg.Envelope.ContentType,
		Timestamp:   msg.Envelope.Timestamp,
		Content:     msg.Payload.Content,
		ReceivedAt:  msg.ReceivedAt,
	}
	if len(msg.Payload.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(msg.Payload.Metadata)
	}
	return row
}

// ToStored converts the row back into its wire form.
func (m *InboxMessage) ToStored() (protocol.StoredMessage, error) {
	from, err := address.Parse(m.FromAddr)
	if err != nil {
		return protocol.StoredMessage{}, fmt.Errorf("message %s from_addr: %w", m.MessageID, err)
	}
	to, err := address.Parse(m.ToAddr)
	if err != nil {
		return protocol.StoredMessage{}, fmt.Errorf("message %s to_addr: %w", m.MessageID, err)
	}

	out := protocol.StoredMessage{
		ID: m.MessageID,
		Envelope: protocol.Envelope{
			FromAddr:    from,
			ToAddr:      to,
			MessageType: protocol.MessageType(m.MessageType),
			ReplyTo:     m.ReplyTo,
			ContentType: m.ContentType,
			Timestamp:   m.Timestamp,
		},
		Payload:    protocol.Payload{Content: m.Content},
		ReceivedAt: m.ReceivedAt.UTC(),
	}
	if len(m.Metadata) > 0 {
		out.Payload.Metadata = map[string]any(m.Metadata)
	}
	return out, nil
}
