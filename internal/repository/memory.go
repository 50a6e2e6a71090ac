package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/welldanyogia/aap/internal/models"
	"github.com/welldanyogia/aap/pkg/protocol"
)

// memoryAgentRepository keeps agents in process memory
type memoryAgentRepository struct {
	mu        sync.RWMutex
	nextID    uint
	byAddress map[string]*models.Agent
	byKeyHash map[string]*models.Agent
}

// NewMemoryAgentRepository creates an AgentRepository that does not persist
func NewMemoryAgentRepository() AgentRepository {
	return &memoryAgentRepository{
		byAddress: make(map[string]*models.Agent),
		byKeyHash: make(map[string]*models.Agent),
	}
}

func (r *memoryAgentRepository) Create(_ context.Context, agent *models.Agent) error {
	if agent.Address == "" || agent.APIKeyHash == "" {
		return fmt.Errorf("agent address and key hash are required: %w", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byAddress[agent.Address]; ok {
		return fmt.Errorf("agent '%s' already exists: %w", agent.Address, ErrDuplicateEntry)
	}
	if _, ok := r.byKeyHash[agent.APIKeyHash]; ok {
		return fmt.Errorf("api key already in use: %w", ErrDuplicateEntry)
	}

	r.nextID++
	agent.ID = r.nextID
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	stored := *agent
	r.byAddress[agent.Address] = &stored
	r.byKeyHash[agent.APIKeyHash] = &stored
	return nil
}

func (r *memoryAgentRepository) GetByAddress(_ context.Context, address string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.byAddress[address]
	if !ok {
		return nil, ErrNotFound
	}
	out := *agent
	return &out, nil
}

func (r *memoryAgentRepository) GetByAPIKeyHash(_ context.Context, hash string) (*models.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.byKeyHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	out := *agent
	return &out, nil
}

// memoryInboxRepository keeps one ordered slice per recipient
type memoryInboxRepository struct {
	mu     sync.RWMutex
	inbox  map[string][]protocol.StoredMessage
	seenID map[string]struct{}
}

// NewMemoryInboxRepository creates an InboxRepository that does not persist
func NewMemoryInboxRepository() InboxRepository {
	return &memoryInboxRepository{
		inbox:  make(map[string][]protocol.StoredMessage),
		seenID: make(map[string]struct{}),
	}
}

func (r *memoryInboxRepository) Append(_ context.Context, recipient string, msg protocol.StoredMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seenID[msg.ID]; ok {
		return fmt.Errorf("message '%s' already stored: %w", msg.ID, ErrDuplicateEntry)
	}
	r.seenID[msg.ID] = struct{}{}
	r.inbox[recipient] = append(r.inbox[recipient], msg)
	return nil
}

// ListRecent copies under the read lock so callers never see a partial append.
func (r *memoryInboxRepository) ListRecent(_ context.Context, recipient string, limit int) ([]protocol.StoredMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %w", ErrInvalidInput)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.inbox[recipient]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]protocol.StoredMessage, len(all))
	copy(out, all)
	return out, nil
}

func (r *memoryInboxRepository) Count(_ context.Context, recipient string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.inbox[recipient])), nil
}
