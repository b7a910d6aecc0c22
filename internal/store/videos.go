package store

import (
	"context"
	"fmt"

	"tnf-api/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const feedColumns = `
	v.*,
	u.username,
	(SELECT COUNT(*) FROM like_videos l WHERE l.video_id = v.id) AS like_count,
	(SELECT COUNT(*) FROM comments c WHERE c.video_id = v.id) AS comment_count,
	EXISTS(SELECT 1 FROM like_videos l WHERE l.video_id = v.id AND l.user_id = $1::uuid) AS is_liked`

func (s *Store) CreateVideo(ctx context.Context, v *models.Video) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.ProductIDs == nil {
		v.ProductIDs = pq.StringArray{}
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO videos (id, user_id, title, description, video_url, thumbnail_url, product_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		v.ID, v.UserID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL, v.ProductIDs,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", translate(err))
	}
	return nil
}

// GetFeedVideo loads one video decorated for viewer (nil for anonymous).
func (s *Store) GetFeedVideo(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.FeedVideo, error) {
	var v models.FeedVideo
	err := s.db.GetContext(ctx, &v, "SELECT "+feedColumns+`
		FROM videos v JOIN users u ON u.id = v.user_id
		WHERE v.id = $2`, viewer, id)
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

// ListFeed pages through videos newest first.
func (s *Store) ListFeed(ctx context.Context, viewer *uuid.UUID, limit, offset int) ([]models.FeedVideo, error) {
	videos := []models.FeedVideo{}
	err := s.db.SelectContext(ctx, &videos, "SELECT "+feedColumns+`
		FROM videos v JOIN users u ON u.id = v.user_id
		ORDER BY v.created_at DESC
		LIMIT $2 OFFSET $3`, viewer, limit, offset)
	return videos, err
}

func (s *Store) ListUserVideos(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.FeedVideo, error) {
	videos := []models.FeedVideo{}
	err := s.db.SelectContext(ctx, &videos, "SELECT "+feedColumns+`
		FROM videos v JOIN users u ON u.id = v.user_id
		WHERE v.user_id = $2
		ORDER BY v.created_at DESC`, viewer, userID)
	return videos, err
}

// SearchVideos matches title and description case-insensitively.
func (s *Store) SearchVideos(ctx context.Context, q string, limit int) ([]models.Video, error) {
	videos := []models.Video{}
	err := s.db.SelectContext(ctx, &videos, `
		SELECT * FROM videos
		WHERE title ILIKE $1 OR description ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2`, likePattern(q), limit)
	return videos, err
}

func (s *Store) IncrementVideoViews(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE videos SET view_count = view_count + 1 WHERE id = $1", id)
	return expectAffected(res, err, ErrNotFound)
}

// DeleteVideo removes a video only when userID owns it.
func (s *Store) DeleteVideo(ctx context.Context, id, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM videos WHERE id = $1 AND user_id = $2", id, userID)
	return expectAffected(res, err, ErrNotFound)
}
