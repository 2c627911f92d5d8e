package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderCartSession = "X-Cart-Session"
	CartSessionCookie = "cart_session"
	CartSessionKey    = "cart_session"
)

// CartSession resolves the cart session from the X-Cart-Session header or the
// cart_session cookie, minting a new one when neither holds a valid id.
// The id is echoed back in both.
func CartSession(ttl time.Duration, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Get(HeaderCartSession)
		if sessionID == "" {
			sessionID = c.Cookies(CartSessionCookie)
		}
		if _, err := uuid.Parse(sessionID); err != nil {
			sessionID = uuid.NewString()
		}

		c.Locals(CartSessionKey, sessionID)
		c.Set(HeaderCartSession, sessionID)
		c.Cookie(&fiber.Cookie{
			Name:     CartSessionCookie,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HTTPOnly: true,
			Secure:   secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		return c.Next()
	}
}

// CartSessionID returns the session resolved by CartSession
func CartSessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(CartSessionKey).(string)
	return id
}
