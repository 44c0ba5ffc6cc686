// Package catalog filters and orders the storefront product list.
package catalog

import (
	"cmp"
	"slices"
	"strings"

	"storefront-service/internal/domain"
)

// Query returns the products a shopper should see for cfg. Filters run in a
// fixed order (category, free text, price range) and the result is then
// stably sorted by cfg.Sort. The input slice is never modified and the
// result is never nil.
func Query(products []domain.Product, cfg domain.FilterConfig) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	needle := strings.ToLower(strings.TrimSpace(cfg.Query))
	for _, p := range products {
		if !matchCategory(p, cfg.Category) {
			continue
		}
		if needle != "" && !matchText(p, needle) {
			continue
		}
		if !cfg.PriceRange.Contains(p.Price) {
			continue
		}
		out = append(out, p)
	}
	sortProducts(out, cfg.Sort)
	return out
}

func matchCategory(p domain.Product, c domain.Category) bool {
	return c == "" || c == domain.AllProducts || p.Category == c
}

// matchText expects needle to be lower-cased already.
func matchText(p domain.Product, needle string) bool {
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(string(p.Category)), needle)
}

func sortProducts(ps []domain.Product, policy domain.SortPolicy) {
	var compare func(a, b domain.Product) int
	switch policy {
	case domain.SortPopularity:
		compare = func(a, b domain.Product) int { return cmp.Compare(b.Reviews, a.Reviews) }
	case domain.SortNewest:
		compare = func(a, b domain.Product) int { return cmp.Compare(rankNew(a), rankNew(b)) }
	case domain.SortPriceAscending:
		compare = func(a, b domain.Product) int { return a.Price.Cmp(b.Price) }
	case domain.SortPriceDescending:
		compare = func(a, b domain.Product) int { return b.Price.Cmp(a.Price) }
	case domain.SortRating:
		compare = func(a, b domain.Product) int { return cmp.Compare(b.Rating, a.Rating) }
	default:
		return
	}
	slices.SortStableFunc(ps, compare)
}

// rankNew orders new arrivals first; there is no creation time to sort by.
func rankNew(p domain.Product) int {
	if p.IsNew {
		return 0
	}
	return 1
}
