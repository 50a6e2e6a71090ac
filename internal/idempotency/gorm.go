package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/welldanyogia/aap/internal/models"
	"gorm.io/gorm"
)

// GormStore keeps records in the idempotency_records table. The composite
// unique index on (recipient, key) arbitrates concurrent claims, including
// claims from other provider instances sharing the database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore. The table must already be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Claim(ctx context.Context, recipient, key, messageID string) (string, bool, error) {
	if err := validate(recipient, key); err != nil {
		return "", false, err
	}

	record := &models.IdempotencyRecord{Recipient: recipient, Key: key, MessageID: messageID}
	err := s.db.WithContext(ctx).Create(record).Error
	if err == nil {
		return messageID, true, nil
	}
	if !isUniqueViolation(err) {
		return "", false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}

	winner, found, err := s.Lookup(ctx, recipient, key)
	if err != nil {
		return "", false, err
	}
	if !found {
		// released between our insert and read; the caller may retry
		return "", false, fmt.Errorf("idempotency record for %s vanished during claim", recipient)
	}
	return winner, false, nil
}

func (s *GormStore) Lookup(ctx context.Context, recipient, key string) (string, bool, error) {
	if err := validate(recipient, key); err != nil {
		return "", false, err
	}

	var record models.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("recipient = ? AND idem_key = ?", recipient, key).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return record.MessageID, true, nil
}

func (s *GormStore) Release(ctx context.Context, recipient, key, messageID string) error {
	if err := validate(recipient, key); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).
		Where("recipient = ? AND idem_key = ? AND message_id = ?", recipient, key, messageID).
		Delete(&models.IdempotencyRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

// PurgeBefore deletes records created before cutoff and returns how many
// were removed. Retries arriving after the purge are stored again.
func (s *GormStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IdempotencyRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge idempotency records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "23505")
}
