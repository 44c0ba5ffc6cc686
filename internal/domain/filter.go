package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SortPolicy selects the ordering applied to catalog results.
type SortPolicy string

const (
	SortPopularity      SortPolicy = "popularity"
	SortNewest          SortPolicy = "newest"
	SortPriceAscending  SortPolicy = "price-ascending"
	SortPriceDescending SortPolicy = "price-descending"
	SortRating          SortPolicy = "rating-descending"
)

// ErrUnknownSortPolicy is returned by ParseSortPolicy for names outside the fixed set.
var ErrUnknownSortPolicy = errors.New("domain: unknown sort policy")

// SortPolicies lists the selectable policies in display order.
func SortPolicies() []SortPolicy {
	return []SortPolicy{SortPopularity, SortNewest, SortPriceAscending, SortPriceDescending, SortRating}
}

// ParseSortPolicy maps a case-insensitive policy name to a SortPolicy.
// An empty name yields SortPopularity.
func ParseSortPolicy(name string) (SortPolicy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return SortPopularity, nil
	}
	for _, p := range SortPolicies() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortPolicy, name)
}

// PriceRange is an inclusive [Min, Max] bound on product price.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Contains reports whether price lies within the inclusive bound.
func (r PriceRange) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(r.Min) && price.LessThanOrEqual(r.Max)
}

// FilterConfig is the transient shop-page state passed to the catalog query.
type FilterConfig struct {
	Category   Category
	Query      string
	PriceRange PriceRange
	Sort       SortPolicy
}
