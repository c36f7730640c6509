package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"

	"github.com/01moynul/taptosell-checkout/internal/models"
)

// Writer creates catalog rows. Only the seed tool uses it; listing
// management lives in another service.
type Writer interface {
	CreateCategory(ctx context.Context, name string) (*models.Category, error)
	CreateBrand(ctx context.Context, name string) (*models.Brand, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	CreateVariant(ctx context.Context, v *models.ProductVariant) error
}

var _ Writer = (*SQLCatalog)(nil)

// CreateCategory inserts a category whose slug is generated from its name.
// An existing slug is reused, so seeding twice is harmless.
func (c *SQLCatalog) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	now := time.Now()
	category := &models.Category{Name: name, Slug: slug.Make(name), CreatedAt: now, UpdatedAt: now}
	id, err := c.upsertNamed(ctx, "categories", category.Name, category.Slug, now)
	if err != nil {
		return nil, err
	}
	category.ID = id
	return category, nil
}

func (c *SQLCatalog) CreateBrand(ctx context.Context, name string) (*models.Brand, error) {
	now := time.Now()
	brand := &models.Brand{Name: name, Slug: slug.Make(name), CreatedAt: now, UpdatedAt: now}
	id, err := c.upsertNamed(ctx, "brands", brand.Name, brand.Slug, now)
	if err != nil {
		return nil, err
	}
	brand.ID = id
	return brand, nil
}

// upsertNamed uses LAST_INSERT_ID(id) so the existing row's id comes back
// when the slug is already taken.
func (c *SQLCatalog) upsertNamed(ctx context.Context, table, name, slugValue string, now time.Time) (int64, error) {
	query := `
		INSERT INTO ` + table + ` (name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id), updated_at = VALUES(updated_at)`
	res, err := c.db.ExecContext(ctx, query, name, slugValue, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get new %s id: %w", table, err)
	}
	return id, nil
}

func (c *SQLCatalog) CreateProduct(ctx context.Context, p *models.Product) error {
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO products
		(seller_id, category_id, brand_id, name, price, stock_quantity, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SellerID, p.CategoryID, p.BrandID, p.Name, p.Price, p.StockQuantity, p.ImageURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product %q: %w", p.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get new product id: %w", err)
	}
	p.ID = id
	return nil
}

func (c *SQLCatalog) CreateVariant(ctx context.Context, v *models.ProductVariant) error {
	now := time.Now()
	v.CreatedAt, v.UpdatedAt = now, now
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO product_variants (product_id, price, stock_quantity, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ProductID, v.Price, v.StockQuantity, v.Options, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert variant of product %d: %w", v.ProductID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get new variant id: %w", err)
	}
	v.ID = id
	return nil
}
