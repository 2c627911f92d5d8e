package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host[:port], e.g. "otlp-gateway-prod-ap-southeast-2.grafana.net"
	OTLPHeaders    map[string]string
	Enabled        bool

	// Deployment shape, exported as resource attributes
	StoreDriver    string
	StoreNamespace string
	PaymentGateway string
	PaymentMode    string
}

// Provider holds the initialized OTEL providers
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	logger         *zap.Logger
}

// ResourceAttributes describes this storefront instance. Empty deployment
// fields are omitted.
func ResourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.namespace", "sod-cloud"),
	}
	optional := []struct{ key, value string }{
		{"storefront.store.driver", cfg.StoreDriver},
		{"storefront.store.namespace", cfg.StoreNamespace},
		{"storefront.payment.gateway", cfg.PaymentGateway},
		{"storefront.payment.mode", cfg.PaymentMode},
	}
	for _, o := range optional {
		if o.value != "" {
			attrs = append(attrs, attribute.String(o.key, o.value))
		}
	}
	return attrs
}

// Initialize installs global trace and metric providers exporting over OTLP/HTTP.
// It returns nil, nil when telemetry is disabled; the global no-op providers stay in place.
func Initialize(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if !cfg.Enabled {
		logger.Info("opentelemetry disabled")
		return nil, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(ResourceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Grafana Cloud OTLP uses /otlp as the base path
	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithURLPath("/otlp/v1/traces"),
		otlptracehttp.WithHeaders(cfg.OTLPHeaders),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter, trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetrichttp.WithURLPath("/otlp/v1/metrics"),
		otlpmetrichttp.WithHeaders(cfg.OTLPHeaders),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(30*time.Second))),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	logger.Info("opentelemetry initialized",
		zap.String("service", cfg.ServiceName),
		zap.String("endpoint", cfg.OTLPEndpoint),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("payment_gateway", cfg.PaymentGateway),
	)

	return &Provider{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		logger:         logger,
	}, nil
}

// Shutdown flushes and stops both providers
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		p.logger.Warn("error shutting down tracer provider", zap.Error(err))
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		p.logger.Warn("error shutting down meter provider", zap.Error(err))
	}
	return nil
}
