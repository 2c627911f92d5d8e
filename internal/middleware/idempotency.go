package middleware

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderIdempotencyKey  = "Idempotency-Key"
	HeaderCorrelationID   = "X-Correlation-ID"
	HeaderIdempotentReply = "X-Idempotent-Replay"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// idempotencyKey scopes requestKey to the path and, behind CartSession, to the
// cart session so two shoppers reusing a key never share a replay.
func idempotencyKey(c *fiber.Ctx, requestKey string) string {
	if session := CartSessionID(c); session != "" {
		return fmt.Sprintf("idempotency:%s:%s:%s", c.Path(), session, requestKey)
	}
	return fmt.Sprintf("idempotency:%s:%s", c.Path(), requestKey)
}

// IdempotencyMiddleware replays the stored response of a mutating request whose
// Idempotency-Key (or X-Correlation-ID) was already seen within ttl.
// Only 2xx responses are stored.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		requestKey := c.Get(HeaderIdempotencyKey)
		if requestKey == "" {
			requestKey = c.Get(HeaderCorrelationID)
		}
		if requestKey == "" {
			return c.Next()
		}

		key := idempotencyKey(c, requestKey)
		ctx := c.UserContext()

		if raw, err := redisClient.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.Set(HeaderIdempotentReply, "true")
				c.Set(fiber.HeaderContentType, cached.ContentType)
				return c.Status(cached.Status).Send(cached.Body)
			}
		} else if err != nil && err != redis.Nil {
			logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
			return nil
		}

		// fasthttp reuses the response buffer after the handler returns
		body := append([]byte(nil), c.Response().Body()...)
		raw, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        body,
		})
		if err != nil {
			return nil
		}
		if err := redisClient.Set(ctx, key, raw, ttl).Err(); err != nil {
			logger.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
}
