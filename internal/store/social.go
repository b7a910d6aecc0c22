package store

import (
	"context"
	"fmt"

	"tnf-api/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AddFavorite stores a (user, product) favorite; a repeat is ErrDuplicate.
func (s *Store) AddFavorite(ctx context.Context, userID uuid.UUID, productID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (id, user_id, product_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO NOTHING`,
		uuid.New(), userID, productID)
	return expectAffected(res, err, ErrDuplicate)
}

func (s *Store) RemoveFavorite(ctx context.Context, userID uuid.UUID, productID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = $1 AND product_id = $2", userID, productID)
	return expectAffected(res, err, ErrNotFound)
}

// FavoritedProductIDs returns which of productIDs the user has favorited.
func (s *Store) FavoritedProductIDs(ctx context.Context, userID uuid.UUID, productIDs []string) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT product_id FROM favorites WHERE user_id = $1 AND product_id = ANY($2)",
		userID, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// ListFavoriteProducts returns the user's favorited products, newest first.
func (s *Store) ListFavoriteProducts(ctx context.Context, userID uuid.UUID) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, `
		SELECT p.* FROM favorites f
		JOIN products p ON p.id::text = f.product_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC`, userID)
	return products, err
}

// UpsertBrand stores a brand keyed by its ikas id.
func (s *Store) UpsertBrand(ctx context.Context, b *models.Brand) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.SalesChannelIDs == nil {
		b.SalesChannelIDs = pq.StringArray{}
	}

	query := `
		INSERT INTO brands (id, ikas_id, name, image_id, description, sales_channel_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ikas_id) DO UPDATE SET
			name = EXCLUDED.name,
			image_id = EXCLUDED.image_id,
			description = EXCLUDED.description,
			sales_channel_ids = EXCLUDED.sales_channel_ids,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		b.ID, b.IkasID, b.Name, b.ImageID, b.Description, b.SalesChannelIDs,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert brand %s: %w", b.IkasID, translate(err))
	}
	return nil
}

func (s *Store) GetBrandByIkasID(ctx context.Context, ikasID string) (*models.Brand, error) {
	var b models.Brand
	if err := s.db.GetContext(ctx, &b, "SELECT * FROM brands WHERE ikas_id = $1", ikasID); err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// SearchBrands matches name and description case-insensitively.
func (s *Store) SearchBrands(ctx context.Context, q string, limit int) ([]models.Brand, error) {
	brands := []models.Brand{}
	err := s.db.SelectContext(ctx, &brands, `
		SELECT * FROM brands
		WHERE name ILIKE $1 OR description ILIKE $1
		ORDER BY name
		LIMIT $2`, likePattern(q), limit)
	return brands, err
}

func (s *Store) FollowBrand(ctx context.Context, userID, brandID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO brand_followers (id, user_id, brand_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, brand_id) DO NOTHING`,
		uuid.New(), userID, brandID)
	return expectAffected(res, err, ErrDuplicate)
}

func (s *Store) UnfollowBrand(ctx context.Context, userID, brandID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM brand_followers WHERE user_id = $1 AND brand_id = $2", userID, brandID)
	return expectAffected(res, err, ErrNotFound)
}

func (s *Store) ListFollowedBrands(ctx context.Context, userID uuid.UUID) ([]models.Brand, error) {
	brands := []models.Brand{}
	err := s.db.SelectContext(ctx, &brands, `
		SELECT b.* FROM brand_followers bf
		JOIN brands b ON b.id = bf.brand_id
		WHERE bf.user_id = $1
		ORDER BY bf.created_at DESC`, userID)
	return brands, err
}

func (s *Store) LikeVideo(ctx context.Context, userID, videoID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO like_videos (id, user_id, video_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, video_id) DO NOTHING`,
		uuid.New(), userID, videoID)
	return expectAffected(res, err, ErrDuplicate)
}

func (s *Store) UnlikeVideo(ctx context.Context, userID, videoID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM like_videos WHERE user_id = $1 AND video_id = $2", userID, videoID)
	return expectAffected(res, err, ErrNotFound)
}

func (s *Store) AddComment(ctx context.Context, c *models.Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO comments (id, video_id, user_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, (SELECT username FROM users WHERE id = $3)`,
		c.ID, c.VideoID, c.UserID, c.Text,
	).Scan(&c.CreatedAt, &c.Username)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", translate(err))
	}
	return nil
}

func (s *Store) ListComments(ctx context.Context, videoID uuid.UUID, limit, offset int) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.SelectContext(ctx, &comments, `
		SELECT c.id, c.video_id, c.user_id, c.text, c.created_at, u.username
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.video_id = $1
		ORDER BY c.created_at
		LIMIT $2 OFFSET $3`, videoID, limit, offset)
	return comments, err
}

// DeleteComment removes a comment only when userID wrote it.
func (s *Store) DeleteComment(ctx context.Context, id, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM comments WHERE id = $1 AND user_id = $2", id, userID)
	return expectAffected(res, err, ErrNotFound)
}

// CreateReport files one report per (reporter, video).
func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO reports (id, reporter_id, video_id, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		r.ID, r.ReporterID, r.VideoID, r.Reason,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", translate(err))
	}
	return nil
}
