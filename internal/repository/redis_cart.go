package repository

import (
	"context"
	"time"

	"github.com/sodcloud/storefront/internal/domain"
)

const cartKeyPrefix = "cart:"

// RedisCartRepository implements domain.CartRepository
type RedisCartRepository struct {
	cache *RedisCacheRepository
}

func NewRedisCartRepository(cache *RedisCacheRepository) *RedisCartRepository {
	return &RedisCartRepository{cache: cache}
}

// Load returns nil, nil when the session has no stored cart
func (r *RedisCartRepository) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := r.cache.Get(ctx, cartKeyPrefix+sessionID, &cart); err != nil {
		if err == ErrCacheMiss {
			return nil, nil
		}
		return nil, err
	}
	cart.Normalize()
	return &cart, nil
}

func (r *RedisCartRepository) Save(ctx context.Context, sessionID string, cart *domain.Cart, ttl time.Duration) error {
	return r.cache.Set(ctx, cartKeyPrefix+sessionID, cart, ttl)
}

func (r *RedisCartRepository) Delete(ctx context.Context, sessionID string) error {
	return r.cache.Delete(ctx, cartKeyPrefix+sessionID)
}
