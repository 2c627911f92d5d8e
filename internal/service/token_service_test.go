package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("gum-gum"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewTokenService(config.AdminConfig{
		JWTSecret:    "test-secret",
		JWTExpiry:    time.Hour,
		Username:     "admin",
		PasswordHash: string(hash),
	})
}

func TestTokenService_Login(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.Login("admin", "gum-gum")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	claims := &domain.AdminClaims{}
	parsed, err := jwt.ParseWithClaims(token.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "admin", claims.Username)
	assert.True(t, claims.HasRole(domain.RoleAdmin))
}

func TestTokenService_LoginRejectsBadCredentials(t *testing.T) {
	svc := newTestTokenService(t)

	_, err := svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = svc.Login("blackbeard", "gum-gum")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
