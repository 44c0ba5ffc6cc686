package domain

import (
	"github.com/shopspring/decimal"
)

// Category is one of the fixed storefront categories.
type Category string

const (
	CategoryElectronics Category = "Electronics"
	CategoryFashion     Category = "Fashion"
	CategoryHome        Category = "Home & Living"
	CategorySports      Category = "Sports"
	CategoryBeauty      Category = "Beauty"
	CategoryBooks       Category = "Books"

	// AllProducts is the filter sentinel that disables category filtering.
	// It is never a valid product category.
	AllProducts Category = "All Products"
)

var categories = []Category{
	CategoryElectronics,
	CategoryFashion,
	CategoryHome,
	CategorySports,
	CategoryBeauty,
	CategoryBooks,
}

// Categories returns the enumerated category set in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c names one of the enumerated categories.
// The match is case-sensitive.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product is a catalog entry. Products are loaded once from the catalog
// source and treated as immutable values afterwards.
// The json tags correspond to the fields expected in API responses.
type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Category      Category         `json:"category"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"` // set only when on sale
	Images        []string         `json:"images"`
	Rating        float64          `json:"rating"`
	Reviews       int              `json:"reviews"`
	Stock         int              `json:"stock"` // display only, never decremented
	IsNew         bool             `json:"isNew"`
	IsSale        bool             `json:"isSale"`
	Colors        []string         `json:"colors,omitempty"`
	Sizes         []string         `json:"sizes,omitempty"`
	Features      []string         `json:"features,omitempty"`
}

// Image returns the canonical image reference, or "" when the product has none.
func (p Product) Image() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Discount returns the absolute saving for a sale product and false otherwise.
func (p Product) Discount() (decimal.Decimal, bool) {
	if !p.IsSale || p.OriginalPrice == nil {
		return decimal.Zero, false
	}
	return p.OriginalPrice.Sub(p.Price), true
}
