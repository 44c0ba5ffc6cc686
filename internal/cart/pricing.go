package cart

import "github.com/shopspring/decimal"

var (
	// FreeShippingThreshold is the subtotal at or above which shipping is free.
	FreeShippingThreshold = decimal.NewFromInt(50)
	// FlatShippingFee applies to non-empty carts below the threshold.
	FlatShippingFee = decimal.NewFromInt(10)
	// TaxRate is applied to the subtotal only.
	TaxRate = decimal.RequireFromString("0.08")
)

// Summary is the order breakdown shown beside the cart.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Summarize derives shipping, tax and total from a cart subtotal.
// A zero subtotal is treated as an empty cart and ships free.
func Summarize(subtotal decimal.Decimal) Summary {
	shipping := decimal.Zero
	if subtotal.IsPositive() && subtotal.LessThan(FreeShippingThreshold) {
		shipping = FlatShippingFee
	}
	tax := subtotal.Mul(TaxRate)
	return Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}
}

// Summary returns the breakdown for the store's current subtotal.
func (s *Store) Summary() Summary {
	return Summarize(s.TotalPrice())
}

// FormatMoney renders an amount with two fraction digits and no symbol.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
