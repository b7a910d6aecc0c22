package store

import (
	"context"
	"fmt"

	"tnf-api/internal/models"

	"github.com/google/uuid"
)

// UpsertProduct inserts or refreshes a product keyed by its ikas product id.
// It reports whether a new row was created.
func (s *Store) UpsertProduct(ctx context.Context, p *models.Product) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	query := `
		INSERT INTO products (id, ikas_product_id, name, description, brand, category_ids, variant_types, variants, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (ikas_product_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			brand = EXCLUDED.brand,
			category_ids = EXCLUDED.category_ids,
			variant_types = EXCLUDED.variant_types,
			variants = EXCLUDED.variants,
			synced_at = NOW(),
			updated_at = NOW()
		RETURNING id, synced_at, created_at, updated_at, (xmax = 0) AS inserted`

	var row struct {
		models.Product
		Inserted bool `db:"inserted"`
	}
	err := s.db.GetContext(ctx, &row, query,
		p.ID, p.IkasProductID, p.Name, p.Description, p.Brand,
		p.CategoryIDs, p.VariantTypes, p.Variants)
	if err != nil {
		return false, fmt.Errorf("failed to upsert product %s: %w", p.IkasProductID, translate(err))
	}

	p.ID = row.ID
	p.SyncedAt = row.SyncedAt
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return row.Inserted, nil
}

func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := s.db.GetContext(ctx, &p, "SELECT * FROM products WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) GetProductByIkasID(ctx context.Context, ikasProductID string) (*models.Product, error) {
	var p models.Product
	if err := s.db.GetContext(ctx, &p, "SELECT * FROM products WHERE ikas_product_id = $1", ikasProductID); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListProducts returns cached products, most recently synced first.
func (s *Store) ListProducts(ctx context.Context, limit, offset int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products ORDER BY synced_at DESC, id LIMIT $1 OFFSET $2", limit, offset)
	return products, err
}

// RandomProducts samples limit products.
func (s *Store) RandomProducts(ctx context.Context, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products ORDER BY random() LIMIT $1", limit)
	return products, err
}

// SearchProducts matches name, brand name and description case-insensitively.
func (s *Store) SearchProducts(ctx context.Context, q string, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT * FROM products
		WHERE name ILIKE $1 OR brand->>'name' ILIKE $1 OR description ILIKE $1
		ORDER BY name
		LIMIT $2`, likePattern(q), limit)
	return products, err
}

// RecordProductView bumps the (user, product) view counter.
func (s *Store) RecordProductView(ctx context.Context, userID, productID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_product_views (id, user_id, product_id, view_count, viewed_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (user_id, product_id) DO UPDATE SET
			view_count = user_product_views.view_count + 1,
			viewed_at = NOW()`,
		uuid.New(), userID, productID)
	return translate(err)
}

// RecentlyViewedProducts lists the user's viewed products, latest first.
func (s *Store) RecentlyViewedProducts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT p.* FROM user_product_views v
		JOIN products p ON p.id = v.product_id
		WHERE v.user_id = $1
		ORDER BY v.viewed_at DESC
		LIMIT $2`, userID, limit)
	return products, err
}
