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

// KVOrderRepository implements domain.OrderRepository on the key-value layout
type KVOrderRepository struct {
	coll *kvCollection[domain.Order]
}

func NewKVOrderRepository(client *redis.Client, namespace string) *KVOrderRepository {
	return &KVOrderRepository{
		coll: newKVCollection(client, namespace, "orders", func(o *domain.Order) string { return o.ID }),
	}
}

func (r *KVOrderRepository) FetchAll(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, 0, len(items))
	for _, o := range items {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if !filter.CreatedBefore.IsZero() && !o.CreatedAt.Before(filter.CreatedBefore) {
			continue
		}
		orders = append(orders, o)
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(orders) {
			return []*domain.Order{}, nil
		}
		orders = orders[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(orders) {
		orders = orders[:filter.Limit]
	}
	return orders, nil
}

func (r *KVOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.coll.byID(ctx, id)
}

func (r *KVOrderRepository) FindByGatewayReference(ctx context.Context, ref string) (*domain.Order, error) {
	return r.coll.first(ctx, func(o *domain.Order) bool { return o.GatewayOrderID == ref })
}

// Create rejects a taken id or gateway reference with ErrConflict
func (r *KVOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = ulid.Make().String()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	stored := *order
	return r.coll.mutate(ctx, func(items []*domain.Order) ([]*domain.Order, error) {
		for _, o := range items {
			if o.ID == stored.ID {
				return nil, fmt.Errorf("order %s: %w", stored.ID, domain.ErrConflict)
			}
			if o.GatewayOrderID == stored.GatewayOrderID {
				return nil, fmt.Errorf("order reference %s: %w", stored.GatewayOrderID, domain.ErrConflict)
			}
		}
		return append(items, &stored), nil
	})
}

// TransitionStatus writes inside a WATCH on the orders key, so a concurrent
// terminal write forces a retry that then sees the order as no longer pending.
func (r *KVOrderRepository) TransitionStatus(ctx context.Context, id string, change domain.StatusChange) (*domain.Order, bool, error) {
	if !change.Status.IsTerminal() {
		return nil, false, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, change.Status)
	}

	var (
		stored  *domain.Order
		applied bool
	)
	err := r.coll.mutate(ctx, func(orders []*domain.Order) ([]*domain.Order, error) {
		stored, applied = nil, false
		i := r.coll.indexOf(orders, id)
		if i < 0 {
			return nil, domain.ErrNotFound
		}
		order := orders[i]
		if !order.Status.CanTransition(change.Status) {
			stored = order
			return nil, errKVUnchanged
		}
		order.Status = change.Status
		if change.PaymentID != nil {
			ref := *change.PaymentID
			order.GatewayPaymentID = &ref
		}
		if change.FailureReason != "" {
			order.FailureReason = change.FailureReason
		}
		order.UpdatedAt = time.Now().UTC()
		stored, applied = order, true
		return orders, nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, applied, nil
}

func (r *KVOrderRepository) MarkPromoRedeemed(ctx context.Context, id string) error {
	_, err := r.coll.update(ctx, id, func(_ []*domain.Order, order *domain.Order) error {
		order.PromoRedeemed = true
		order.UpdatedAt = time.Now().UTC()
		return nil
	})
	return err
}
