package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverMongo = "mongo"
	DriverRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	MongoDB MongoDBConfig
	Redis   RedisConfig
	Session SessionConfig
	Admin   AdminConfig
	Payment PaymentConfig
	S3      S3Config
	OTEL    OTELConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string
	Environment string
	CORSOrigins string
}

// IsDevelopment reports whether the service runs locally
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// StoreConfig selects and seeds the record store
type StoreConfig struct {
	Driver       string
	Namespace    string
	SeedDefaults bool
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
}

// SessionConfig holds lifetimes of short-lived server state
type SessionConfig struct {
	CartTTL         time.Duration
	IdempotencyTTL  time.Duration
	OrderPendingTTL time.Duration // 0 disables the stale order sweep
}

// AdminConfig holds the back-office operator credentials
type AdminConfig struct {
	JWTSecret    string
	JWTExpiry    time.Duration
	Username     string
	PasswordHash string // bcrypt
}

// PaymentConfig holds payment gateway configuration.
// An empty APIKey selects the mock gateway.
type PaymentConfig struct {
	MerchantID    string
	MerchantName  string
	Environment   string
	APIKey        string
	BaseURL       string
	WebhookSecret string
}

// S3Config holds the receipt archive configuration. An empty bucket disables archiving.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// OTELConfig holds OpenTelemetry exporter configuration
type OTELConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	InstanceID     string
	Token          string
}

// Load reads configuration from environment variables
// It attempts to load from .env file first, then falls back to system env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("APP_ENV", "production"),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		},
		Store: StoreConfig{
			Driver:       strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
			Namespace:    getEnv("STORE_NAMESPACE", "sod"),
			SeedDefaults: getEnvAsBool("SEED_DEFAULTS", false),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: getEnv("MONGODB_DATABASE", "storefront"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Session: SessionConfig{
			CartTTL:         getEnvAsDuration("CART_TTL", 7*24*time.Hour),
			IdempotencyTTL:  getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			OrderPendingTTL: getEnvAsDuration("ORDER_PENDING_TTL", time.Hour),
		},
		Admin: AdminConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			JWTExpiry:    getEnvAsDuration("JWT_EXPIRY", 12*time.Hour),
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Payment: PaymentConfig{
			MerchantID:    getEnv("PAYMENT_MERCHANT_ID", "BCR2DN7TZD7MBT2N"),
			MerchantName:  getEnv("PAYMENT_MERCHANT_NAME", "Steal Or Die Cloud™"),
			Environment:   getEnv("PAYMENT_ENVIRONMENT", "TEST"),
			APIKey:        getEnv("PAYMENT_API_KEY", ""),
			BaseURL:       getEnv("PAYMENT_BASE_URL", ""),
			WebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		},
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Bucket:    getEnv("S3_BUCKET", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},
		OTEL: OTELConfig{
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "sod-storefront"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("OTEL_ENVIRONMENT", getEnv("APP_ENV", "production")),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			InstanceID:     getEnv("OTEL_INSTANCE_ID", ""),
			Token:          getEnv("OTEL_TOKEN", ""),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.Store.Driver != DriverMongo && c.Store.Driver != DriverRedis {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverRedis, c.Store.Driver)
	}
	if c.Store.Namespace == "" {
		return fmt.Errorf("STORE_NAMESPACE must not be empty")
	}
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Admin.PasswordHash != "" && !strings.HasPrefix(c.Admin.PasswordHash, "$2") {
		return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash")
	}
	if c.OTEL.Enabled && c.OTEL.Endpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when OTEL_ENABLED=true")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("15m") or plain seconds
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
