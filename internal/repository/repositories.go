package repository

import (
	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/mongo"
)

// Repositories is the full record store behind one driver
type Repositories struct {
	Plans         domain.PlanRepository
	Orders        domain.OrderRepository
	PromoCodes    domain.PromoCodeRepository
	Announcements domain.AnnouncementRepository
	BlogPosts     domain.BlogPostRepository
	Customers     domain.CustomerRepository
}

// NewMongoRepositories wires the Mongo driver. When cache is non-nil plan
// reads go through it.
func NewMongoRepositories(db *mongo.Database, cache *RedisCacheRepository) *Repositories {
	var plans domain.PlanRepository = NewMongoPlanRepository(db)
	if cache != nil {
		plans = NewCachedPlanRepository(plans, cache)
	}
	return &Repositories{
		Plans:         plans,
		Orders:        NewMongoOrderRepository(db),
		PromoCodes:    NewMongoPromoCodeRepository(db),
		Announcements: NewMongoAnnouncementRepository(db),
		BlogPosts:     NewMongoBlogPostRepository(db),
		Customers:     NewMongoCustomerRepository(db),
	}
}

// NewKVRepositories wires the key-value driver under namespace
func NewKVRepositories(client *redis.Client, namespace string) *Repositories {
	return &Repositories{
		Plans:         NewKVPlanRepository(client, namespace),
		Orders:        NewKVOrderRepository(client, namespace),
		PromoCodes:    NewKVPromoCodeRepository(client, namespace),
		Announcements: NewKVAnnouncementRepository(client, namespace),
		BlogPosts:     NewKVBlogPostRepository(client, namespace),
		Customers:     NewKVCustomerRepository(client, namespace),
	}
}
