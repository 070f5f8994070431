// Package money holds the fee arithmetic applied at checkout.
package money

import "github.com/shopspring/decimal"

// Breakdown is the monetary split of an order.
type Breakdown struct {
	Subtotal    decimal.Decimal
	ServiceFee  decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Line is a priced quantity.
type Line struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity x unit price rounded to cents.
func (l Line) LineTotal() decimal.Decimal {
	return Round(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// Round rounds to two decimal places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Compute builds the breakdown for lines. The service fee is a percentage of
// the subtotal; the total is always subtotal + service fee + delivery fee.
func Compute(lines []Line, serviceRate, deliveryFee decimal.Decimal) Breakdown {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal())
	}
	service := Round(subtotal.Mul(serviceRate))
	delivery := Round(deliveryFee)

	return Breakdown{
		Subtotal:    subtotal,
		ServiceFee:  service,
		DeliveryFee: delivery,
		Total:       subtotal.Add(service).Add(delivery),
	}
}
