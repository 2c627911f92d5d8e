package repository

import (
	"context"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/domain"
)

// KVPlanRepository implements domain.PlanRepository on the key-value layout
type KVPlanRepository struct {
	coll *kvCollection[domain.Plan]
}

func NewKVPlanRepository(client *redis.Client, namespace string) *KVPlanRepository {
	return &KVPlanRepository{
		coll: newKVCollection(client, namespace, "plans", func(p *domain.Plan) string { return p.ID }),
	}
}

func (r *KVPlanRepository) FetchAll(ctx context.Context, filter domain.PlanFilter) ([]*domain.Plan, error) {
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	plans := make([]*domain.Plan, 0, len(items))
	for _, p := range items {
		if filter.Category == "" || p.Category == filter.Category {
			plans = append(plans, p)
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Category != plans[j].Category {
			return plans[i].Category < plans[j].Category
		}
		return plans[i].PriceUSD.LessThan(plans[j].PriceUSD)
	})
	return plans, nil
}

func (r *KVPlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	return r.coll.byID(ctx, id)
}

func (r *KVPlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	if plan.ID == "" {
		plan.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	stored := *plan
	return r.coll.insert(ctx, &stored)
}

func (r *KVPlanRepository) Update(ctx context.Context, id string, patch domain.PlanPatch) (*domain.Plan, error) {
	return r.coll.update(ctx, id, func(_ []*domain.Plan, plan *domain.Plan) error {
		patch.Apply(plan)
		if err := plan.Validate(); err != nil {
			return err
		}
		plan.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *KVPlanRepository) Delete(ctx context.Context, id string) error {
	return r.coll.remove(ctx, id)
}
