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

// KVCustomerRepository implements domain.CustomerRepository on the key-value layout
type KVCustomerRepository struct {
	coll *kvCollection[domain.Customer]
}

func NewKVCustomerRepository(client *redis.Client, namespace string) *KVCustomerRepository {
	return &KVCustomerRepository{
		coll: newKVCollection(client, namespace, "users", func(c *domain.Customer) string { return c.ID }),
	}
}

func (r *KVCustomerRepository) FetchAll(ctx context.Context) ([]*domain.Customer, error) {
	items, err := r.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (r *KVCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.coll.byID(ctx, id)
}

func (r *KVCustomerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	email = domain.NormalizeEmail(email)
	return r.coll.first(ctx, func(c *domain.Customer) bool { return c.Email == email })
}

func (r *KVCustomerRepository) Create(ctx context.Context, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = ulid.Make().String()
	}
	c.Email = domain.NormalizeEmail(c.Email)
	if c.Status == "" {
		c.Status = domain.CustomerActive
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	stored := *c

	return r.coll.mutate(ctx, func(customers []*domain.Customer) ([]*domain.Customer, error) {
		for _, existing := range customers {
			if existing.ID == stored.ID || existing.Email == stored.Email {
				return nil, fmt.Errorf("customer %s: %w", stored.Email, domain.ErrConflict)
			}
		}
		return append(customers, &stored), nil
	})
}

func (r *KVCustomerRepository) UpsertByEmail(ctx context.Context, c *domain.Customer) error {
	email := domain.NormalizeEmail(c.Email)
	now := time.Now().UTC()
	newID := ulid.Make().String()

	var result domain.Customer
	err := r.coll.mutate(ctx, func(customers []*domain.Customer) ([]*domain.Customer, error) {
		for _, existing := range customers {
			if existing.Email == email {
				existing.Name = c.Name
				existing.Phone = c.Phone
				existing.UpdatedAt = now
				result = *existing
				return customers, nil
			}
		}
		created := &domain.Customer{
			ID:        newID,
			Email:     email,
			Name:      c.Name,
			Phone:     c.Phone,
			Status:    domain.CustomerActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		result = *created
		return append(customers, created), nil
	})
	if err != nil {
		return err
	}
	*c = result
	return nil
}

func (r *KVCustomerRepository) Update(ctx context.Context, id string, patch domain.CustomerPatch) (*domain.Customer, error) {
	return r.coll.update(ctx, id, func(_ []*domain.Customer, c *domain.Customer) error {
		patch.Apply(c)
		if err := c.Validate(); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *KVCustomerRepository) Delete(ctx context.Context, id string) error {
	return r.coll.remove(ctx, id)
}
