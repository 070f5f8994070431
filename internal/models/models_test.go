package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	price := decimal.RequireFromString("10.00")
	promo := decimal.RequireFromString("7.50")
	higher := decimal.RequireFromString("12.00")
	zero := decimal.Zero

	p := Product{Price: price}
	assert.True(t, p.EffectivePrice().Equal(price))

	p.PromoPrice = &promo
	assert.True(t, p.EffectivePrice().Equal(promo))

	p.PromoPrice = &higher
	assert.True(t, p.EffectivePrice().Equal(price))

	p.PromoPrice = &zero
	assert.True(t, p.EffectivePrice().Equal(price))
}

func TestAddressLine(t *testing.T) {
	a := Address{Street: "12 rue de la Paix", PostalCode: "75002", City: "Paris"}
	assert.Equal(t, "12 rue de la Paix, 75002 Paris", a.Line())

	a.PostalCode = ""
	assert.Equal(t, "12 rue de la Paix, Paris", a.Line())

	a.City = ""
	assert.Equal(t, "12 rue de la Paix", a.Line())
}

func TestRoleAndStatusValid(t *testing.T) {
	assert.True(t, RoleCourier.Valid())
	assert.False(t, Role("chef").Valid())
	assert.True(t, UserStatusSuspended.Valid())
	assert.False(t, UserStatus("banned").Valid())
	assert.True(t, PaymentMethodWallet.Valid())
	assert.False(t, PaymentMethod("bitcoin").Valid())
}

func TestBaseModelBeforeCreate(t *testing.T) {
	var fresh BaseModel
	assert.NoError(t, fresh.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, fresh.ID)
	assert.Equal(t, time.UTC, fresh.CreatedAt.Location())
	assert.Equal(t, fresh.CreatedAt, fresh.UpdatedAt)

	id := uuid.New()
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	preset := BaseModel{ID: id, CreatedAt: stamp}
	assert.NoError(t, preset.BeforeCreate(nil))
	assert.Equal(t, id, preset.ID)
	assert.Equal(t, stamp, preset.CreatedAt)
	assert.Equal(t, stamp, preset.UpdatedAt)
}
