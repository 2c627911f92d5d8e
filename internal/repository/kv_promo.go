package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/domain"
)

// KVPromoCodeRepository implements domain.PromoCodeRepository on the key-value layout
type KVPromoCodeRepository struct {
	coll *kvCollection[domain.PromoCode]
}

func NewKVPromoCodeRepository(client *redis.Client, namespace string) *KVPromoCodeRepository {
	return &KVPromoCodeRepository{
		coll: newKVCollection(client, namespace, "promo_codes", func(p *domain.PromoCode) string { return p.ID }),
	}
}

func (r *KVPromoCodeRepository) FetchAll(ctx context.Context) ([]*domain.PromoCode, error) {
	promos, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(promos, func(i, j int) bool {
		return promos[i].CreatedAt.After(promos[j].CreatedAt)
	})
	return promos, nil
}

func (r *KVPromoCodeRepository) GetByID(ctx context.Context, id string) (*domain.PromoCode, error) {
	return r.coll.byID(ctx, id)
}

func (r *KVPromoCodeRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	code = domain.NormalizePromoCode(code)
	return r.coll.first(ctx, func(p *domain.PromoCode) bool { return p.Code == code })
}

func (r *KVPromoCodeRepository) Create(ctx context.Context, promo *domain.PromoCode) error {
	if promo.ID == "" {
		promo.ID = ulid.Make().String()
	}
	promo.Code = domain.NormalizePromoCode(promo.Code)
	now := time.Now().UTC()
	promo.CreatedAt = now
	promo.UpdatedAt = now
	stored := *promo

	return r.coll.mutate(ctx, func(promos []*domain.PromoCode) ([]*domain.PromoCode, error) {
		for _, p := range promos {
			if p.ID == stored.ID || p.Code == stored.Code {
				return nil, fmt.Errorf("promo code %s: %w", stored.Code, domain.ErrConflict)
			}
		}
		return append(promos, &stored), nil
	})
}

func (r *KVPromoCodeRepository) Update(ctx context.Context, id string, patch domain.PromoCodePatch) (*domain.PromoCode, error) {
	return r.coll.update(ctx, id, func(promos []*domain.PromoCode, promo *domain.PromoCode) error {
		patch.Apply(promo)
		if err := promo.Validate(); err != nil {
			return err
		}
		for _, other := range promos {
			if other.ID != promo.ID && other.Code == promo.Code {
				return fmt.Errorf("promo code %s: %w", promo.Code, domain.ErrConflict)
			}
		}
		promo.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *KVPromoCodeRepository) Delete(ctx context.Context, id string) error {
	return r.coll.remove(ctx, id)
}

func (r *KVPromoCodeRepository) IncrementUsage(ctx context.Context, id string) error {
	_, err := r.coll.update(ctx, id, func(_ []*domain.PromoCode, promo *domain.PromoCode) error {
		if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
			return domain.ErrPromoExhausted
		}
		promo.UsageCount++
		promo.UpdatedAt = time.Now().UTC()
		return nil
	})
	return err
}
