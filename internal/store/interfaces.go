package store

import (
	"context"
	"errors"
	"fmt"

	"storefront-service/internal/catalog"
	"storefront-service/internal/domain"
)

// Predefined errors for catalog loading
var (
	ErrCatalogEmpty   = errors.New("store: catalog has no products")
	ErrInvalidProduct = errors.New("store: invalid product record")
)

// CatalogSource loads the static product list. Sources are read once at
// startup; nothing is ever written back.
type CatalogSource interface {
	LoadCatalog(ctx context.Context) ([]domain.Product, error)
}

// LoadCatalog reads every product from src and indexes it.
func LoadCatalog(ctx context.Context, src CatalogSource) (*catalog.Catalog, error) {
	products, err := src.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrCatalogEmpty
	}
	c, err := catalog.New(products)
	if err != nil {
		return nil, fmt.Errorf("store: LoadCatalog failed to index products: %w", err)
	}
	return c, nil
}
