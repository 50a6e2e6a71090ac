package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// MockIdempotencyStore implements idempotency.Store
type MockIdempotencyStore struct {
	mock.Mock
}

// Claim records key for messageID unless it is already taken
func (m *MockIdempotencyStore) Claim(ctx context.Context, recipient, key, messageID string) (string, bool, error) {
	args := m.Called(ctx, recipient, key, messageID)
	return args.String(0), args.Bool(1), args.Error(2)
}

// Lookup returns the message ID recorded for key
func (m *MockIdempotencyStore) Lookup(ctx context.Context, recipient, key string) (string, bool, error) {
	args := m.Called(ctx, recipient, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

// Release drops a claim that still names messageID
func (m *MockIdempotencyStore) Release(ctx context.Context, recipient, key, messageID string) error {
	args := m.Called(ctx, recipient, key, messageID)
	return args.Error(0)
}

// NotificationRecord records a notification sent through the recording notifier
type NotificationRecord struct {
	Recipient string
	Message   protocol.StoredMessage
}

// RecordingNotifier implements intake.Notifier and keeps every notification
type RecordingNotifier struct {
	mu            sync.Mutex
	Notifications []NotificationRecord
}

// NotifyMessage records the notification
func (n *RecordingNotifier) NotifyMessage(recipient string, msg protocol.StoredMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notifications = append(n.Notifications, NotificationRecord{Recipient: recipient, Message: msg})
}

// Records returns a copy of the notifications seen so far
func (n *RecordingNotifier) Records() []NotificationRecord {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NotificationRecord(nil), n.Notifications...)
}
