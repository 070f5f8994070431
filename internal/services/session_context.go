package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/example/marketplace/internal/models"
)

// Actor identifies who performs an operation.
type Actor struct {
	ID   uuid.UUID
	Role models.Role
}

// SessionContext is the authenticated identity attached to a request after
// its bearer token has been verified. It is passed explicitly to the
// operations that need it; nothing holds a "current user".
type SessionContext struct {
	User      *models.User
	SessionID uuid.UUID
	ExpiresAt time.Time
}

// UserID returns the authenticated user's id.
func (s *SessionContext) UserID() uuid.UUID { return s.User.ID }

// Role returns the authenticated user's role.
func (s *SessionContext) Role() models.Role { return s.User.Role }

// Actor returns the acting identity for service calls.
func (s *SessionContext) Actor() Actor {
	return Actor{ID: s.User.ID, Role: s.User.Role}
}
