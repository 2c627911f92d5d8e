package main

import (
	"context"
	"encoding/base64"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/domain"
	"github.com/sodcloud/storefront/internal/logger"
	"github.com/sodcloud/storefront/internal/repository"
	"github.com/sodcloud/storefront/internal/seed"
	"github.com/sodcloud/storefront/internal/server"
	"github.com/sodcloud/storefront/internal/service"
	"github.com/sodcloud/storefront/internal/telemetry"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Server.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	zlog.Info("starting storefront service",
		zap.String("environment", cfg.Server.Environment),
		zap.String("store_driver", cfg.Store.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Grafana Cloud requires Basic auth with instanceId:apiToken base64 encoded
	headers := map[string]string{}
	if cfg.OTEL.InstanceID != "" {
		authEncoded := base64.StdEncoding.EncodeToString([]byte(cfg.OTEL.InstanceID + ":" + cfg.OTEL.Token))
		headers["Authorization"] = "Basic " + authEncoded
	}
	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.OTEL.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		OTLPHeaders:    headers,
		Enabled:        cfg.OTEL.Enabled,
		StoreDriver:    cfg.Store.Driver,
		StoreNamespace: cfg.Store.Namespace,
		PaymentGateway: paymentGatewayName(cfg.Payment),
		PaymentMode:    cfg.Payment.Environment,
	}, zlog)
	if err != nil {
		zlog.Warn("failed to initialize opentelemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelProvider.Shutdown(shutdownCtx)
	}()

	metrics, err := telemetry.NewOrderMetrics()
	if err != nil {
		zlog.Warn("order metrics disabled", zap.Error(err))
	}

	// Connect to Redis; carts and idempotency keys live here under both drivers
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		zlog.Fatal("failed to connect to redis", zap.Error(err))
	}
	zlog.Info("redis connected", zap.String("addr", cfg.Redis.Addr))

	var repos *repository.Repositories
	switch cfg.Store.Driver {
	case config.DriverMongo:
		mongoDB, disconnect := connectMongo(ctx, cfg, zlog)
		defer disconnect()
		repos = repository.NewMongoRepositories(mongoDB, repository.NewRedisCacheRepository(redisClient))
	case config.DriverRedis:
		repos = repository.NewKVRepositories(redisClient, cfg.Store.Namespace)
		zlog.Info("using redis key-value store", zap.String("namespace", cfg.Store.Namespace))
	}

	if cfg.Store.SeedDefaults {
		if _, err := seed.Run(ctx, repos, zlog); err != nil {
			zlog.Error("failed to seed defaults", zap.Error(err))
		}
	}

	var receipts domain.ReceiptStore
	if cfg.S3.Bucket != "" {
		store, err := repository.NewS3ReceiptStore(ctx, cfg.S3)
		if err != nil {
			zlog.Warn("receipt archive disabled", zap.Error(err))
		} else {
			receipts = store
		}
	}

	monitor := service.NewGatewayMonitor(service.NewPaymentGateway(cfg.Payment, zlog), zlog)
	monitor.Start(ctx)

	deps := server.AppDependencies{
		Config:      cfg,
		Repos:       repos,
		RedisClient: redisClient,
		Gateway:     monitor,
		Receipts:    receipts,
		Metrics:     metrics,
		Logger:      zlog,
	}
	services := server.NewServices(deps)
	app := server.NewApp(deps, services)

	if cfg.Session.OrderPendingTTL > 0 {
		go sweepStaleOrders(ctx, services.Orders, cfg.Session.OrderPendingTTL, zlog)
	}
	go services.Carts.RunJanitor(ctx)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zlog.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Error("shutdown failed", zap.Error(err))
		}
	}()

	zlog.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		zlog.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func connectMongo(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*mongo.Database, func()) {
	ctxMongo, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
	// Add OTEL monitor for MongoDB tracing
	if cfg.OTEL.Enabled {
		mongoOpts.SetMonitor(otelmongo.NewMonitor())
	}

	mongoClient, err := mongo.Connect(ctxMongo, mongoOpts)
	if err != nil {
		zlog.Fatal("failed to connect to mongodb", zap.Error(err))
	}
	if err := mongoClient.Ping(ctxMongo, nil); err != nil {
		zlog.Fatal("failed to ping mongodb", zap.Error(err))
	}
	zlog.Info("mongodb connected", zap.String("database", cfg.MongoDB.Database))

	return mongoClient.Database(cfg.MongoDB.Database), func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			zlog.Warn("error disconnecting from mongodb", zap.Error(err))
		}
	}
}

// sweepStaleOrders cancels abandoned pending orders until ctx ends
func sweepStaleOrders(ctx context.Context, orders *service.OrderService, olderThan time.Duration, zlog *zap.Logger) {
	interval := olderThan / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := orders.ExpireStale(ctx, olderThan); err != nil {
				zlog.Error("stale order sweep failed", zap.Error(err))
			}
		}
	}
}

func paymentGatewayName(cfg config.PaymentConfig) string {
	if cfg.APIKey == "" {
		return "mock"
	}
	return "google_pay"
}
