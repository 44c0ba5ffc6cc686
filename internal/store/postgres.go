package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-service/internal/domain"
)

// PostgresSource loads the catalog from PostgreSQL.
type PostgresSource struct {
	db       *sql.DB
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPostgresSource creates a new PostgresSource over an open pool.
func NewPostgresSource(db *sql.DB, logger *zap.Logger) *PostgresSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{db: db, validate: newRecordValidator(), logger: logger}
}

const listCatalogQuery = `
		SELECT id, name, description, category, price, original_price, images,
		       rating, reviews, stock, is_new, is_sale, colors, sizes, features
		FROM products.storefront_products
		ORDER BY position ASC, id ASC;
	`

// LoadCatalog reads every product in catalog order.
func (s *PostgresSource) LoadCatalog(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, listCatalogQuery)
	if err != nil {
		return nil, fmt.Errorf("store: LoadCatalog failed to query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var (
			p        domain.Product
			category string
			original decimal.NullDecimal
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&category,
			&p.Price,
			&original,
			pq.Array(&p.Images),
			&p.Rating,
			&p.Reviews,
			&p.Stock,
			&p.IsNew,
			&p.IsSale,
			pq.Array(&p.Colors),
			pq.Array(&p.Sizes),
			pq.Array(&p.Features),
		); err != nil {
			return nil, fmt.Errorf("store: LoadCatalog failed to scan product row: %w", err)
		}
		p.Category = domain.Category(category)
		if original.Valid {
			p.OriginalPrice = &original.Decimal
		}
		if err := validateRecord(s.validate, recordFromDomain(p)); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: LoadCatalog iteration error: %w", err)
	}

	s.logger.Info("catalog loaded from postgres", zap.Int("products", len(products)))
	return products, nil
}

// Ping checks the connection; used by the health endpoint.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *PostgresSource) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("closing database connection pool")
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database connection pool", zap.Error(err))
		return err
	}
	return nil
}
