package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role discriminates which satellite profile owns a user's extended attributes.
type Role string

const (
	RoleClient   Role = "client"
	RoleSupplier Role = "supplier"
	RoleCourier  Role = "courier"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleSupplier, RoleCourier, RoleAdmin:
		return true
	}
	return false
}

// UserStatus is the account lifecycle state.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

// User represents any marketplace account.
type User struct {
	BaseModel
	Email           string           `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash    string           `gorm:"not null" json:"-"`
	FullName        string           `json:"full_name"`
	Phone           string           `json:"phone"`
	Role            Role             `gorm:"index;not null" json:"role"`
	Status          UserStatus       `gorm:"index;not null;default:active" json:"status"`
	LastLoginAt     *time.Time       `json:"last_login_at"`
	ClientProfile   *ClientProfile   `json:"client_profile,omitempty"`
	SupplierProfile *SupplierProfile `json:"supplier_profile,omitempty"`
	CourierProfile  *CourierProfile  `json:"courier_profile,omitempty"`
	AdminProfile    *AdminProfile    `json:"admin_profile,omitempty"`
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

type ClientProfile struct {
	BaseModel
	UserID        uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	LoyaltyPoints int        `json:"loyalty_points"`
}

type SupplierProfile struct {
	BaseModel
	UserID       uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	BusinessName string          `json:"business_name"`
	BusinessType string          `gorm:"index" json:"business_type"`
	Description  string          `json:"description"`
	Address      string          `json:"address"`
	Latitude     float64         `json:"latitude"`
	Longitude    float64         `json:"longitude"`
	OpeningHours string          `json:"opening_hours"`
	IsOpen       bool            `json:"is_open"`
	DeliveryFee  decimal.Decimal `gorm:"type:numeric(12,2)" json:"delivery_fee"`
	Rating       float64         `json:"rating"`
}

type CourierProfile struct {
	BaseModel
	UserID           uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	VehicleType      string    `json:"vehicle_type"`
	LicensePlate     string    `json:"license_plate"`
	IsAvailable      bool      `json:"is_available"`
	CurrentLatitude  float64   `json:"current_latitude"`
	CurrentLongitude float64   `json:"current_longitude"`
	TotalDeliveries  int       `json:"total_deliveries"`
}

type AdminProfile struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	AccessLevel string    `json:"access_level"`
}
