package models

import (
	"time"
)

// Agent is an address registered with this provider
type Agent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Address    string    `gorm:"uniqueIndex;not null;size:500" json:"aap_address"`
	OwnerRole  string    `gorm:"index;not null;size:129" json:"owner_role"`
	Provider   string    `gorm:"not null;size:253" json:"provider"`
	Model      string    `gorm:"size:255" json:"model,omitempty"`
	APIKeyHash string    `gorm:"uniqueIndex;not null;size:64" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Agent
func (Agent) TableName() string {
	return "agents"
}
