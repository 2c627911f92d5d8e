package service

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// TokenService authenticates the back-office operator and issues JWT access tokens
type TokenService struct {
	adminConfig config.AdminConfig
	now         func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(adminConfig config.AdminConfig) *TokenService {
	return &TokenService{adminConfig: adminConfig, now: time.Now}
}

// AccessToken is the login response
type AccessToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"` // Seconds until the token expires
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login checks operator credentials against the configured bcrypt hash
func (s *TokenService) Login(username, password string) (*AccessToken, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminConfig.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.adminConfig.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.Issue(username)
}

// Issue signs an admin token for username
func (s *TokenService) Issue(username string) (*AccessToken, error) {
	now := s.now()
	expiresAt := now.Add(s.adminConfig.JWTExpiry)

	claims := domain.AdminClaims{
		Username: username,
		Roles:    []string{domain.RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.adminConfig.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AccessToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.adminConfig.JWTExpiry.Seconds()),
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}
