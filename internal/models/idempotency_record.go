package models

import (
	"time"
)

// IdempotencyRecord maps (recipient, key) to the first message accepted with
// that key.
type IdempotencyRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Recipient string    `gorm:"not null;size:129;uniqueIndex:ux_idempotency_recipient_key,priority:1"`
	Key       string    `gorm:"column:idem_key;not null;size:255;uniqueIndex:ux_idempotency_recipient_key,priority:2"`
	MessageID string    `gorm:"not null;size:36"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the table name for IdempotencyRecord
func (IdempotencyRecord) TableName() string {
	return "idempotency_records"
}
