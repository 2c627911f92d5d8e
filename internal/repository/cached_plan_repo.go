package repository

import (
	"context"
	"time"

	"github.com/sodcloud/storefront/internal/domain"
)

const (
	planByIDKeyPrefix   = "plan:id:"
	planListKeyPrefix   = "plan:list:"
	planListKeyAll      = planListKeyPrefix + "all"
	planCacheTTL        = 10 * time.Minute
	planListKeyWildcard = planListKeyPrefix + "*"
)

// CachedPlanRepository wraps a PlanRepository with a Redis read-through cache
type CachedPlanRepository struct {
	store domain.PlanRepository
	cache *RedisCacheRepository
}

// NewCachedPlanRepository creates a new cached plan repository
func NewCachedPlanRepository(store domain.PlanRepository, cache *RedisCacheRepository) *CachedPlanRepository {
	return &CachedPlanRepository{
		store: store,
		cache: cache,
	}
}

func planListKey(filter domain.PlanFilter) string {
	if filter.Category == "" {
		return planListKeyAll
	}
	return planListKeyPrefix + string(filter.Category)
}

func (r *CachedPlanRepository) FetchAll(ctx context.Context, filter domain.PlanFilter) ([]*domain.Plan, error) {
	key := planListKey(filter)

	// Try cache first
	var plans []*domain.Plan
	if err := r.cache.Get(ctx, key, &plans); err == nil {
		return plans, nil
	}

	plans, err := r.store.FetchAll(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Store in cache (ignore cache errors)
	_ = r.cache.Set(ctx, key, plans, planCacheTTL)
	return plans, nil
}

func (r *CachedPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	key := planByIDKeyPrefix + id

	var plan domain.Plan
	if err := r.cache.Get(ctx, key, &plan); err == nil {
		return &plan, nil
	}

	result, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, key, result, planCacheTTL)
	return result, nil
}

func (r *CachedPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	if err := r.store.Create(ctx, plan); err != nil {
		return err
	}
	r.invalidate(ctx, plan.ID)
	return nil
}

func (r *CachedPlanRepository) Update(ctx context.Context, id string, patch domain.PlanPatch) (*domain.Plan, error) {
	plan, err := r.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id)
	return plan, nil
}

func (r *CachedPlanRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *CachedPlanRepository) invalidate(ctx context.Context, id string) {
	_ = r.cache.Delete(ctx, planByIDKeyPrefix+id)
	_ = r.cache.DeleteByPattern(ctx, planListKeyWildcard)
}
