package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

var (
	ErrProductNotFound  = errors.New("catalog: product not found")
	ErrDuplicateProduct = errors.New("catalog: duplicate product id")
)

// Catalog is the read-only product list loaded once from a catalog source.
type Catalog struct {
	products []domain.Product
	byID     map[string]int
}

// New indexes products by ID. The slice is copied; later changes by the
// caller do not affect the catalog.
func New(products []domain.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]domain.Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	copy(c.products, products)
	for i, p := range c.products {
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ID)
		}
		c.byID[p.ID] = i
	}
	return c, nil
}

// Products returns a copy of the full list in catalog order.
func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len is the number of products.
func (c *Catalog) Len() int { return len(c.products) }

func (c *Catalog) ProductByID(id string) (domain.Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return c.products[i], nil
}

// Categories returns the enumerated category names.
func (c *Catalog) Categories() []domain.Category {
	return domain.Categories()
}

// CategoryCounts reports how many products each category holds, keyed by
// category, with AllProducts mapped to the catalog size.
func (c *Catalog) CategoryCounts() map[domain.Category]int {
	counts := make(map[domain.Category]int, len(domain.Categories())+1)
	for _, cat := range domain.Categories() {
		counts[cat] = 0
	}
	for _, p := range c.products {
		counts[p.Category]++
	}
	counts[domain.AllProducts] = len(c.products)
	return counts
}

// PriceBounds is the inclusive range spanning every product price. An empty
// catalog yields [0, 0].
func (c *Catalog) PriceBounds() domain.PriceRange {
	if len(c.products) == 0 {
		return domain.PriceRange{Min: decimal.Zero, Max: decimal.Zero}
	}
	r := domain.PriceRange{Min: c.products[0].Price, Max: c.products[0].Price}
	for _, p := range c.products[1:] {
		r.Min = decimal.Min(r.Min, p.Price)
		r.Max = decimal.Max(r.Max, p.Price)
	}
	return r
}

// Search runs Query over the whole catalog.
func (c *Catalog) Search(cfg domain.FilterConfig) []domain.Product {
	return Query(c.products, cfg)
}

// DefaultFilter selects every product with the widest price range and
// popularity ordering.
func (c *Catalog) DefaultFilter() domain.FilterConfig {
	b := c.PriceBounds()
	return domain.FilterConfig{
		Category:   domain.AllProducts,
		PriceRange: domain.PriceRange{Min: decimal.Zero, Max: b.Max},
		Sort:       domain.SortPopularity,
	}
}
