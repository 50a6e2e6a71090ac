package repository

import (
	"context"
	"fmt"

	"github.com/welldanyogia/aap/internal/models"
	"github.com/welldanyogia/aap/pkg/protocol"
	"gorm.io/gorm"
)

// InboxRepository defines the interface for inbox persistence. Messages are
// listed in receipt order.
type InboxRepository interface {
	Append(ctx context.Context, recipient string, msg protocol.StoredMessage) error
	ListRecent(ctx context.Context, recipient string, limit int) ([]protocol.StoredMessage, error)
	Count(ctx context.Context, recipient string) (int64, error)
}

// inboxRepository implements InboxRepository using GORM
type inboxRepository struct {
	db *gorm.DB
}

// NewInboxRepository creates a new InboxRepository instance
func NewInboxRepository(db *gorm.DB) InboxRepository {
	return &inboxRepository{db: db}
}

// Append stores msg at the end of recipient's inbox
func (r *inboxRepository) Append(ctx context.Context, recipient string, msg protocol.StoredMessage) error {
	row := models.NewInboxMessage(recipient, msg)
	result := r.db.WithContext(ctx).Create(row)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("message '%s' already stored: %w", msg.ID, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to append message: %w", result.Error)
	}
	return nil
}

// ListRecent returns the last limit messages of recipient, oldest first
func (r *inboxRepository) ListRecent(ctx context.Context, recipient string, limit int) ([]protocol.StoredMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %w", ErrInvalidInput)
	}

	var rows []models.InboxMessage
	result := r.db.WithContext(ctx).
		Where("recipient = ?", recipient).
		Order("seq DESC").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list messages: %w", result.Error)
	}

	messages := make([]protocol.StoredMessage, len(rows))
	for i := range rows {
		msg, err := rows[i].ToStored()
		if err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages[len(rows)-1-i] = msg
	}
	return messages, nil
}

// Count returns the number of messages held for recipient
func (r *inboxRepository) Count(ctx context.Context, recipient string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.InboxMessage{}).Where("recipient = ?", recipient).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return total, nil
}
