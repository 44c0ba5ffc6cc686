package store

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"storefront-service/internal/domain"
)

// productRecord is the on-disk shape of a catalog entry. Both sources
// validate through it so a record is accepted or rejected the same way
// wherever it came from.
type productRecord struct {
	ID            string   `yaml:"id" validate:"required"`
	Name          string   `yaml:"name" validate:"required,max=255"`
	Description   string   `yaml:"description"`
	Category      string   `yaml:"category" validate:"required,storefront_category"`
	Price         float64  `yaml:"price" validate:"gte=0"`
	OriginalPrice *float64 `yaml:"originalPrice"`
	Images        []string `yaml:"images" validate:"min=1,dive,required"`
	Rating        float64  `yaml:"rating" validate:"gte=0,lte=5"`
	Reviews       int      `yaml:"reviews" validate:"gte=0"`
	Stock         int      `yaml:"stock" validate:"gte=0"`
	IsNew         bool     `yaml:"isNew"`
	IsSale        bool     `yaml:"isSale"`
	Colors        []string `yaml:"colors" validate:"omitempty,dive,required"`
	Sizes         []string `yaml:"sizes" validate:"omitempty,dive,required"`
	Features      []string `yaml:"features"`
}

func newRecordValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("storefront_category", func(fl validator.FieldLevel) bool {
		return domain.Category(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r := sl.Current().Interface().(productRecord)
		switch {
		case r.IsSale && r.OriginalPrice == nil:
			sl.ReportError(r.OriginalPrice, "OriginalPrice", "originalPrice", "required_with_sale", "")
		case !r.IsSale && r.OriginalPrice != nil:
			sl.ReportError(r.OriginalPrice, "OriginalPrice", "originalPrice", "excluded_without_sale", "")
		case r.OriginalPrice != nil && *r.OriginalPrice <= r.Price:
			sl.ReportError(r.OriginalPrice, "OriginalPrice", "originalPrice", "gtfield", "Price")
		}
	}, productRecord{})
	return v
}

func (r productRecord) toDomain() domain.Product {
	p := domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    domain.Category(r.Category),
		Price:       decimal.NewFromFloat(r.Price),
		Images:      r.Images,
		Rating:      r.Rating,
		Reviews:     r.Reviews,
		Stock:       r.Stock,
		IsNew:       r.IsNew,
		IsSale:      r.IsSale,
		Colors:      r.Colors,
		Sizes:       r.Sizes,
		Features:    r.Features,
	}
	if r.OriginalPrice != nil {
		orig := decimal.NewFromFloat(*r.OriginalPrice)
		p.OriginalPrice = &orig
	}
	return p
}

func recordFromDomain(p domain.Product) productRecord {
	r := productRecord{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    string(p.Category),
		Price:       p.Price.InexactFloat64(),
		Images:      p.Images,
		Rating:      p.Rating,
		Reviews:     p.Reviews,
		Stock:       p.Stock,
		IsNew:       p.IsNew,
		IsSale:      p.IsSale,
		Colors:      p.Colors,
		Sizes:       p.Sizes,
		Features:    p.Features,
	}
	if p.OriginalPrice != nil {
		f := p.OriginalPrice.InexactFloat64()
		r.OriginalPrice = &f
	}
	return r
}

func validateRecord(v *validator.Validate, r productRecord) error {
	if err := v.Struct(r); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidProduct, r.ID, err)
	}
	return nil
}
