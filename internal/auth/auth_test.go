package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret-key", 15*time.Minute, 7*24*time.Hour)
}

// ==================== JWT ====================

func TestJWTService_IssuePair(t *testing.T) {
	s := newTestJWTService()

	pair, err := s.IssuePair(Identity{UserID: "u1", Username: "ada", IkasUserID: "c1"})
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := s.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, "c1", claims.IkasUserID)
	assert.Equal(t, "u1", claims.Subject)

	refresh, err := s.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", refresh.UserID)
}

func TestJWTService_TokenTypesNotInterchangeable(t *testing.T) {
	s := newTestJWTService()
	pair, err := s.IssuePair(Identity{UserID: "u1"})
	require.NoError(t, err)

	_, err = s.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	s := newTestJWTService()
	current := time.Now()
	s.now = func() time.Time { return current }

	pair, err := s.IssuePair(Identity{UserID: "u1"})
	require.NoError(t, err)

	current = current.Add(16 * time.Minute)

	_, err = s.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = s.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestJWTService_Invalid(t *testing.T) {
	s := newTestJWTService()
	other := NewJWTService("other-secret", time.Minute, time.Hour)
	foreign, err := other.IssuePair(Identity{UserID: "u1"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u1", TokenType: TokenTypeAccess}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", foreign.AccessToken},
		{"alg none", none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := s.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

// ==================== Passwords ====================

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.True(t, CheckPassword("secret1", hash))
	assert.False(t, CheckPassword("Secret1", hash))
	assert.False(t, CheckPassword("", hash))
	assert.False(t, CheckPassword("secret1", ""))
	assert.False(t, CheckPassword("secret1", "not-bcrypt"))
}

func TestHashPassword_TooShort(t *testing.T) {
	hash, err := HashPassword("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
	assert.Empty(t, hash)
}
