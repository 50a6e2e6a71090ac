package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/aap/internal/models"
	"gorm.io/gorm"
)

// AgentRepository defines the interface for agent registry access
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByAddress(ctx context.Context, address string) (*models.Agent, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.Agent, error)
}

// agentRepository implements AgentRepository using GORM
type agentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new AgentRepository instance
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

// Create registers a new agent
func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	if agent.Address == "" || agent.APIKeyHash == "" {
		return fmt.Errorf("agent address and key hash are required: %w", ErrInvalidInput)
	}
	result := r.db.WithContext(ctx).Create(agent)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("agent '%s' already exists: %w", agent.Address, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create agent: %w", result.Error)
	}
	return nil
}

// GetByAddress retrieves an agent by its canonical address
func (r *agentRepository) GetByAddress(ctx context.Context, address string) (*models.Agent, error) {
	var agent models.Agent
	result := r.db.WithContext(ctx).Where("address = ?", address).First(&agent)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent by address: %w", result.Error)
	}
	return &agent, nil
}

// GetByAPIKeyHash retrieves the agent owning an API key
func (r *agentRepository) GetByAPIKeyHash(ctx context.Context, hash string) (*models.Agent, error) {
	var agent models.Agent
	result := r.db.WithContext(ctx).Where("api_key_hash = ?", hash).First(&agent)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent by key: %w", result.Error)
	}
	return &agent, nil
}
