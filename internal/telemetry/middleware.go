package telemetry

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sod-storefront"

// FiberMiddleware starts a server span per request and exposes it through c.UserContext()
func FiberMiddleware() fiber.Handler {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return func(c *fiber.Ctx) error {
		carrier := propagation.MapCarrier{}
		c.Request().Header.VisitAll(func(key, value []byte) {
			carrier[string(key)] = string(value)
		})
		ctx := propagator.Extract(c.UserContext(), carrier)

		ctx, span := tracer.Start(ctx, c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.url", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("http.user_agent", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)
		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Set("X-Trace-ID", sc.TraceID().String())
		}

		err := c.Next()

		// Route is only known once the router has matched
		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)

		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= fiber.StatusInternalServerError:
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		default:
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}

// TraceID returns the trace id of the request span, or ""
func TraceID(c *fiber.Ctx) string {
	sc := trace.SpanFromContext(c.UserContext()).SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
