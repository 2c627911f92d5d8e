package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sodcloud/storefront/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger writes one structured line per request
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		level := zapcore.InfoLevel
		switch {
		case status >= fiber.StatusInternalServerError:
			level = zapcore.ErrorLevel
		case status >= fiber.StatusBadRequest:
			level = zapcore.WarnLevel
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if traceID := telemetry.TraceID(c); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		logger.Check(level, "request").Write(fields...)
		return err
	}
}
