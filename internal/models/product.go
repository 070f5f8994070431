package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	BaseModel
	SupplierID    uuid.UUID        `gorm:"type:uuid;index;not null" json:"supplier_id"`
	CategoryID    *uuid.UUID       `gorm:"type:uuid;index" json:"category_id"`
	Category      *Category        `json:"category,omitempty"`
	Name          string           `gorm:"not null" json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"price"`
	PromoPrice    *decimal.Decimal `gorm:"type:numeric(12,2)" json:"promo_price"`
	StockQuantity int              `json:"stock_quantity"`
	IsAvailable   bool             `gorm:"index" json:"is_available"`
	ImageURL      string           `json:"image_url"`
}

// EffectivePrice is the price a client pays right now: the promotional price
// when it is set, positive and below the regular price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.PromoPrice != nil && p.PromoPrice.IsPositive() && p.PromoPrice.LessThan(p.Price) {
		return *p.PromoPrice
	}
	return p.Price
}
