// Package catalog is the read-only view of products and variants that
// checkout and the cart API consult.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/01moynul/taptosell-checkout/internal/database"
	"github.com/01moynul/taptosell-checkout/internal/models"
)

var ErrNotFound = errors.New("catalog entry not found")

type Reader interface {
	// Attribution returns the category/brand a product's sales are credited to.
	Attribution(ctx context.Context, productID int64) (models.Attribution, error)
	Product(ctx context.Context, productID int64) (*models.Product, error)
	Variant(ctx context.Context, variantID int64) (*models.ProductVariant, error)
}

type SQLCatalog struct {
	db database.DBTX
}

func NewSQLCatalog(db database.DBTX) *SQLCatalog {
	return &SQLCatalog{db: db}
}

func (c *SQLCatalog) Attribution(ctx context.Context, productID int64) (models.Attribution, error) {
	var category, brand sql.NullInt64
	err := c.db.QueryRowContext(ctx, "SELECT category_id, brand_id FROM products WHERE id = ?", productID).Scan(&category, &brand)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Attribution{}, ErrNotFound
	}
	if err != nil {
		return models.Attribution{}, fmt.Errorf("attribution for product %d: %w", productID, err)
	}

	var attr models.Attribution
	if category.Valid {
		attr.CategoryID = &category.Int64
	}
	if brand.Valid {
		attr.BrandID = &brand.Int64
	}
	return attr, nil
}

func (c *SQLCatalog) Product(ctx context.Context, productID int64) (*models.Product, error) {
	var p models.Product
	var category, brand sql.NullInt64
	err := c.db.QueryRowContext(ctx, `
		SELECT id, seller_id, category_id, brand_id, name, price, stock_quantity, image_url, created_at, updated_at
		FROM products WHERE id = ?`, productID).Scan(
		&p.ID, &p.SellerID, &category, &brand, &p.Name, &p.Price, &p.StockQuantity, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if category.Valid {
		p.CategoryID = &category.Int64
	}
	if brand.Valid {
		p.BrandID = &brand.Int64
	}
	return &p, nil
}

func (c *SQLCatalog) Variant(ctx context.Context, variantID int64) (*models.ProductVariant, error) {
	var v models.ProductVariant
	err := c.db.QueryRowContext(ctx, `
		SELECT id, product_id, price, stock_quantity, options, created_at, updated_at
		FROM product_variants WHERE id = ?`, variantID).Scan(
		&v.ID, &v.ProductID, &v.Price, &v.StockQuantity, &v.Options, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get variant %d: %w", variantID, err)
	}
	return &v, nil
}
