package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sodcloud/storefront/internal/domain"
)

// Context keys for storing operator info
const (
	UsernameKey = "username"
	RolesKey    = "roles"
)

// VerifyAdminToken validates the bearer JWT and extracts claims
func VerifyAdminToken(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing authorization token",
			})
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &domain.AdminClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid or expired token",
			})
		}

		c.Locals(UsernameKey, claims.Username)
		c.Locals(RolesKey, claims.Roles)
		return c.Next()
	}
}

// AuthorizeRole checks if the operator has at least one of the required roles
func AuthorizeRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userRoles, ok := c.Locals(RolesKey).([]string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "No roles found in token",
			})
		}

		for _, userRole := range userRoles {
			for _, allowedRole := range allowedRoles {
				if userRole == allowedRole {
					return c.Next()
				}
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success":        false,
			"error":          "Insufficient permissions",
			"required_roles": allowedRoles,
		})
	}
}
