package store

import (
	"context"
	"fmt"

	"tnf-api/internal/models"

	"github.com/google/uuid"
)

// CreateUser inserts a local account. Email or username collisions return
// ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name, phone, bio, avatar_url, ikas_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Bio, u.AvatarURL, u.IkasUserID,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE lower(email) = lower($1)", email); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username)
	return exists, err
}

// LinkIkasUser points a local user at its commerce customer shadow.
func (s *Store) LinkIkasUser(ctx context.Context, userID, ikasUserID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET ikas_user_id = $1, updated_at = NOW() WHERE id = $2", ikasUserID, userID)
	return expectAffected(res, err, ErrNotFound)
}

// FindUserByIkasCustomerID resolves the local user owning a remote customer.
func (s *Store) FindUserByIkasCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `
		SELECT u.* FROM users u
		JOIN ikas_users i ON i.id = u.ikas_user_id
		WHERE i.ikas_customer_id = $1
		LIMIT 1`, customerID)
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UpsertIkasUser creates or refreshes the customer shadow keyed by the remote
// customer id. An empty access token keeps the stored one.
func (s *Store) UpsertIkasUser(ctx context.Context, iu *models.IkasUser) error {
	if iu.ID == uuid.Nil {
		iu.ID = uuid.New()
	}
	if iu.Addresses == nil {
		iu.Addresses = models.CustomerAddresses{}
	}

	query := `
		INSERT INTO ikas_users (id, ikas_customer_id, email, first_name, last_name, phone, addresses, access_token, token_expiry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ikas_customer_id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			addresses = EXCLUDED.addresses,
			access_token = CASE WHEN EXCLUDED.access_token = '' THEN ikas_users.access_token ELSE EXCLUDED.access_token END,
			token_expiry = COALESCE(EXCLUDED.token_expiry, ikas_users.token_expiry),
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		iu.ID, iu.IkasCustomerID, iu.Email, iu.FirstName, iu.LastName, iu.Phone, iu.Addresses, iu.AccessToken, iu.TokenExpiry,
	).Scan(&iu.ID, &iu.CreatedAt, &iu.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ikas user %s: %w", iu.IkasCustomerID, translate(err))
	}
	return nil
}

func (s *Store) GetIkasUserByCustomerID(ctx context.Context, customerID string) (*models.IkasUser, error) {
	var iu models.IkasUser
	if err := s.db.GetContext(ctx, &iu, "SELECT * FROM ikas_users WHERE ikas_customer_id = $1", customerID); err != nil {
		return nil, translate(err)
	}
	return &iu, nil
}

func (s *Store) GetIkasUserByID(ctx context.Context, id uuid.UUID) (*models.IkasUser, error) {
	var iu models.IkasUser
	if err := s.db.GetContext(ctx, &iu, "SELECT * FROM ikas_users WHERE id = $1", id); err != nil {
		return nil, translate(err)
	}
	return &iu, nil
}

const profileColumns = `
	u.*,
	(SELECT COUNT(*) FROM followers_followings f WHERE f.following_id = u.id) AS follower_count,
	(SELECT COUNT(*) FROM followers_followings f WHERE f.follower_id = u.id) AS following_count,
	(SELECT COUNT(*) FROM videos v WHERE v.user_id = u.id) AS video_count,
	EXISTS(SELECT 1 FROM followers_followings f WHERE f.follower_id = $1::uuid AND f.following_id = u.id) AS is_following`

// GetUserProfile loads a user with relationship counts as seen by viewer.
func (s *Store) GetUserProfile(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM users u WHERE u.id = $2", viewer, id)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) ListFollowers(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error) {
	profiles := []models.UserProfile{}
	err := s.db.SelectContext(ctx, &profiles, "SELECT "+profileColumns+`
		FROM followers_followings ff
		JOIN users u ON u.id = ff.follower_id
		WHERE ff.following_id = $2
		ORDER BY ff.created_at DESC`, viewer, userID)
	return profiles, err
}

func (s *Store) ListFollowings(ctx context.Context, userID uuid.UUID, viewer *uuid.UUID) ([]models.UserProfile, error) {
	profiles := []models.UserProfile{}
	err := s.db.SelectContext(ctx, &profiles, "SELECT "+profileColumns+`
		FROM followers_followings ff
		JOIN users u ON u.id = ff.following_id
		WHERE ff.follower_id = $2
		ORDER BY ff.created_at DESC`, viewer, userID)
	return profiles, err
}

// SearchUsers matches username and bio case-insensitively.
func (s *Store) SearchUsers(ctx context.Context, q string, limit int) ([]models.User, error) {
	users := []models.User{}
	err := s.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE username ILIKE $1 OR bio ILIKE $1
		ORDER BY username
		LIMIT $2`, likePattern(q), limit)
	return users, err
}

// FollowUser inserts the (follower, following) edge; an existing edge is ErrDuplicate.
func (s *Store) FollowUser(ctx context.Context, followerID, followingID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO followers_followings (id, follower_id, following_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (follower_id, following_id) DO NOTHING`,
		uuid.New(), followerID, followingID)
	return expectAffected(res, err, ErrDuplicate)
}

func (s *Store) UnfollowUser(ctx context.Context, followerID, followingID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM followers_followings WHERE follower_id = $1 AND following_id = $2",
		followerID, followingID)
	return expectAffected(res, err, ErrNotFound)
}
