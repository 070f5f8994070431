package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTwoUnits(t *testing.T) {
	b := Compute([]Line{{Quantity: 2, UnitPrice: d("10.00")}}, d("0.05"), d("2.50"))

	assert.Equal(t, "20.00", b.Subtotal.StringFixed(2))
	assert.Equal(t, "1.00", b.ServiceFee.StringFixed(2))
	assert.Equal(t, "2.50", b.DeliveryFee.StringFixed(2))
	assert.Equal(t, "23.50", b.Total.StringFixed(2))
}

func TestComputeTotalIsSumOfParts(t *testing.T) {
	lines := []Line{
		{Quantity: 3, UnitPrice: d("4.99")},
		{Quantity: 1, UnitPrice: d("0.35")},
		{Quantity: 7, UnitPrice: d("1.15")},
	}
	b := Compute(lines, d("0.05"), d("1.99"))

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.True(t, b.Subtotal.Equal(sum))
	assert.True(t, b.Total.Equal(sum.Add(b.ServiceFee).Add(b.DeliveryFee)))
	// 23.37 * 0.05 = 1.1685
	assert.Equal(t, "1.17", b.ServiceFee.StringFixed(2))
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", Round(d("0.125")).StringFixed(2))
	assert.Equal(t, "0.12", Round(d("0.124")).StringFixed(2))
}

func TestComputeEmpty(t *testing.T) {
	b := Compute(nil, d("0.05"), d("2.50"))
	assert.True(t, b.Subtotal.IsZero())
	assert.Equal(t, "2.50", b.Total.StringFixed(2))
}
