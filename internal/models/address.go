package models

import (
	"strings"

	"github.com/google/uuid"
)

type Address struct {
	BaseModel
	ClientID     uuid.UUID `gorm:"type:uuid;index" json:"client_id"`
	Label        string    `json:"label"`
	Street       string    `json:"street"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postal_code"`
	Instructions string    `json:"instructions"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	IsPrimary    bool      `json:"is_primary"`
}

// Line renders the address as a single delivery line.
func (a *Address) Line() string {
	locality := strings.TrimSpace(a.PostalCode + " " + a.City)
	if locality == "" {
		return a.Street
	}
	return a.Street + ", " + locality
}
