package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/aap/internal/models"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// MockAgentRepository implements repository.AgentRepository
type MockAgentRepository struct {
	mock.Mock
}

// Create registers a new agent
func (m *MockAgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

// GetByAddress retrieves an agent by its canonical address
func (m *MockAgentRepository) GetByAddress(ctx context.Context, address string) (*models.Agent, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

// GetByAPIKeyHash retrieves the agent owning an API key
func (m *MockAgentRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Agent, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

// MockInboxRepository implements repository.InboxRepository
type MockInboxRepository struct {
	mock.Mock
}

// Append stores a message in a recipient's inbox
func (m *MockInboxRepository) Append(ctx context.Context, recipient string, msg protocol.StoredMessage) error {
	args := m.Called(ctx, recipient, msg)
	return args.Error(0)
}

// ListRecent returns the newest messages, oldest first
func (m *MockInboxRepository) ListRecent(ctx context.Context, recipient string, limit int) ([]protocol.StoredMessage, error) {
	args := m.Called(ctx, recipient, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]protocol.StoredMessage), args.Error(1)
}

// Count returns the number of messages in an inbox
func (m *MockInboxRepository) Count(ctx context.Context, recipient string) (int64, error) {
	args := m.Called(ctx, recipient)
	return args.Get(0).(int64), args.Error(1)
}
