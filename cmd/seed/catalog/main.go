package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/config"
	"github.com/sodcloud/storefront/internal/logger"
	"github.com/sodcloud/storefront/internal/repository"
	"github.com/sodcloud/storefront/internal/seed"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Seeds the default catalog, promo codes, content and demo users into the
// configured store. Records that already exist are skipped.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(true)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repos *repository.Repositories
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
		if err != nil {
			zlog.Fatal("failed to connect to mongodb", zap.Error(err))
		}
		defer client.Disconnect(ctx)
		repos = repository.NewMongoRepositories(client.Database(cfg.MongoDB.Database), nil)
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer client.Close()
		repos = repository.NewKVRepositories(client, cfg.Store.Namespace)
	}

	res, err := seed.Run(ctx, repos, zlog)
	if err != nil {
		zlog.Fatal("seeding failed", zap.Error(err))
	}
	zlog.Info("seeding finished", zap.Int("plans_inserted", res.Plans))
}
