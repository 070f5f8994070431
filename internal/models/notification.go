package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is a row in a user's inbox. ID is monotonically increasing and
// doubles as the polling cursor.
type Notification struct {
	ID        uint64               `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uuid.UUID            `gorm:"type:uuid;index;not null" json:"user_id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Type      string               `gorm:"index" json:"type"`
	Priority  NotificationPriority `json:"priority"`
	Link      string               `json:"link"`
	IsRead    bool                 `gorm:"index" json:"is_read"`
	OrderID   *uuid.UUID           `gorm:"type:uuid" json:"order_id"`
	CreatedAt time.Time            `json:"created_at"`
}
