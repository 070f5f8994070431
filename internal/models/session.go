package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record backing a bearer token. A token is only
// honoured while its session row is active and unexpired.
type Session struct {
	BaseModel
	UserID         uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User           *User     `json:"-"`
	TokenHash      string    `gorm:"index;not null" json:"-"`
	IPAddress      string    `json:"ip_address"`
	UserAgent      string    `json:"user_agent"`
	ExpiresAt      time.Time `gorm:"index" json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	IsActive       bool      `gorm:"index" json:"is_active"`
}

// AuditLog records security-relevant actions.
type AuditLog struct {
	BaseModel
	ActorID   *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"`
	Action    string     `gorm:"index" json:"action"`
	Entity    string     `json:"entity"`
	EntityID  string     `json:"entity_id"`
	Details   string     `json:"details"`
	IPAddress string     `json:"ip_address"`
}
