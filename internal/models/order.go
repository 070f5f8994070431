package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is a state of the order lifecycle.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodCash, PaymentMethodWallet:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type Order struct {
	BaseModel
	OrderNumber     string          `gorm:"uniqueIndex" json:"order_number"`
	ClientID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"client_id"`
	Client          *User           `json:"client,omitempty"`
	SupplierID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"supplier_id"`
	Supplier        *User           `json:"supplier,omitempty"`
	CourierID       *uuid.UUID      `gorm:"type:uuid;index" json:"courier_id"`
	Courier         *User           `json:"courier,omitempty"`
	AddressID       uuid.UUID       `gorm:"type:uuid" json:"address_id"`
	DeliveryAddress string          `json:"delivery_address"`
	DeliveryLat     float64         `json:"delivery_latitude"`
	DeliveryLng     float64         `json:"delivery_longitude"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2)" json:"subtotal"`
	ServiceFee      decimal.Decimal `gorm:"type:numeric(12,2)" json:"service_fee"`
	DeliveryFee     decimal.Decimal `gorm:"type:numeric(12,2)" json:"delivery_fee"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2)" json:"total"`
	AmountPaid      decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount_paid"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	Status          OrderStatus     `gorm:"index;not null" json:"status"`
	Notes           string          `json:"notes"`
	DeliveredAt     *time.Time      `json:"delivered_at"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	CancelReason    string          `json:"cancel_reason"`
	Items           []OrderItem     `json:"items,omitempty"`
	Payment         *Payment        `json:"payment,omitempty"`
}

// OrderItem is an immutable snapshot of a product line at checkout time.
type OrderItem struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index" json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2)" json:"line_total"`
}

type Payment struct {
	BaseModel
	OrderID     uuid.UUID       `gorm:"type:uuid;uniqueIndex" json:"order_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	Method      PaymentMethod   `json:"method"`
	Status      PaymentStatus   `gorm:"index" json:"status"`
	ConfirmedAt *time.Time      `json:"confirmed_at"`
	ConfirmedBy *uuid.UUID      `gorm:"type:uuid" json:"confirmed_by"`
}
