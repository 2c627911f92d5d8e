package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderMetrics counts order lifecycle events
type OrderMetrics struct {
	created    metric.Int64Counter
	reconciled metric.Int64Counter
	redeemed   metric.Int64Counter
}

// NewOrderMetrics registers the counters on the global meter provider
func NewOrderMetrics() (*OrderMetrics, error) {
	meter := otel.Meter(tracerName)

	created, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders created in pending status"))
	if err != nil {
		return nil, err
	}
	reconciled, err := meter.Int64Counter("orders_reconciled_total",
		metric.WithDescription("Orders moved to a terminal status"))
	if err != nil {
		return nil, err
	}
	redeemed, err := meter.Int64Counter("promo_redemptions_total",
		metric.WithDescription("Promo code usages recorded on completed orders"))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{created: created, reconciled: reconciled, redeemed: redeemed}, nil
}

// OrderCreated records a new pending order. Safe on a nil receiver.
func (m *OrderMetrics) OrderCreated(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("currency", currency)))
}

// OrderReconciled records a terminal transition. Safe on a nil receiver.
func (m *OrderMetrics) OrderReconciled(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.reconciled.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// PromoRedeemed records a promo usage increment. Safe on a nil receiver.
func (m *OrderMetrics) PromoRedeemed(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.redeemed.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
