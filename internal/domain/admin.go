package domain

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role the back office issues
const RoleAdmin = "admin"

// AdminClaims represents the JWT claims of a back-office session
type AdminClaims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry role
func (c *AdminClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ReceiptStore archives a receipt document for a completed order
type ReceiptStore interface {
	PutReceipt(ctx context.Context, order *Order) (string, error)
}
