package domain

import "github.com/shopspring/decimal"

// LineKey identifies a cart line for add-accumulation and display grouping.
type LineKey struct {
	ProductID string
	Color     string
	Size      string
}

// CartLine is a product together with the chosen variant and quantity.
// Quantity is always >= 1 while the line is held by a cart.
type CartLine struct {
	Product
	Quantity      int    `json:"quantity"`
	SelectedColor string `json:"selectedColor,omitempty"`
	SelectedSize  string `json:"selectedSize,omitempty"`
}

// Key returns the identity key of the line.
func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ID, Color: l.SelectedColor, Size: l.SelectedSize}
}

// LineTotal is price × quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
