package store

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"storefront-service/internal/domain"
)

//go:embed seed/catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Products []productRecord `yaml:"products"`
}

// StaticSource serves a catalog decoded from YAML.
type StaticSource struct {
	data     []byte
	validate *validator.Validate
}

// NewStaticSource uses the catalog document in data.
func NewStaticSource(data []byte) *StaticSource {
	return &StaticSource{data: data, validate: newRecordValidator()}
}

// NewDefaultSource uses the catalog shipped with the binary.
func NewDefaultSource() *StaticSource {
	return NewStaticSource(defaultCatalog)
}

// NewFileSource reads the catalog document at path.
func NewFileSource(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: NewFileSource failed to read %s: %w", path, err)
	}
	return NewStaticSource(data), nil
}

// LoadCatalog decodes and validates every record. Unknown fields are
// rejected so typos in the catalog file surface at startup.
func (s *StaticSource) LoadCatalog(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(s.data))
	dec.KnownFields(true)

	var doc catalogFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrCatalogEmpty
		}
		return nil, fmt.Errorf("store: LoadCatalog failed to decode catalog: %w", err)
	}

	products := make([]domain.Product, 0, len(doc.Products))
	for _, r := range doc.Products {
		if err := validateRecord(s.validate, r); err != nil {
			return nil, err
		}
		products = append(products, r.toDomain())
	}
	return products, nil
}
