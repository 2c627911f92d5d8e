package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sodcloud/storefront/internal/domain"
)

const kvMaxRetries = 16

// errKVUnchanged lets a mutation finish without writing
var errKVUnchanged = errors.New("kv: unchanged")

// kvCollection stores every record of one entity type as a single JSON array
// under <namespace>:<entity>. Writes are WATCH/MULTI transactions retried on conflict.
type kvCollection[T any] struct {
	client *redis.Client
	key    string
	idOf   func(*T) string
}

func newKVCollection[T any](client *redis.Client, namespace, entity string, idOf func(*T) string) *kvCollection[T] {
	return &kvCollection[T]{
		client: client,
		key:    namespace + ":" + entity,
		idOf:   idOf,
	}
}

func decodeKV[T any](data []byte, err error) ([]*T, error) {
	if err == redis.Nil {
		return []*T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	items := []*T{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	return items, nil
}

// all loads a fresh copy of every record
func (c *kvCollection[T]) all(ctx context.Context) ([]*T, error) {
	return decodeKV[T](c.client.Get(ctx, c.key).Bytes())
}

// first returns the first record matching pred
func (c *kvCollection[T]) first(ctx context.Context, pred func(*T) bool) (*T, error) {
	items, err := c.all(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if pred(item) {
			return item, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c *kvCollection[T]) byID(ctx context.Context, id string) (*T, error) {
	return c.first(ctx, func(item *T) bool { return c.idOf(item) == id })
}

func (c *kvCollection[T]) indexOf(items []*T, id string) int {
	for i, item := range items {
		if c.idOf(item) == id {
			return i
		}
	}
	return -1
}

// mutate runs fn against the current array inside an optimistic transaction.
// fn may run more than once and must not keep state between calls.
func (c *kvCollection[T]) mutate(ctx context.Context, fn func(items []*T) ([]*T, error)) error {
	txf := func(tx *redis.Tx) error {
		items, err := decodeKV[T](tx.Get(ctx, c.key).Bytes())
		if err != nil {
			return err
		}
		items, err = fn(items)
		if err != nil {
			return err
		}
		data, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < kvMaxRetries; attempt++ {
		err := c.client.Watch(ctx, txf, c.key)
		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, errKVUnchanged) {
			return nil
		}
		return err
	}
	return fmt.Errorf("kv %s: gave up after %d write conflicts", c.key, kvMaxRetries)
}

// insert appends item unless its id is taken
func (c *kvCollection[T]) insert(ctx context.Context, item *T) error {
	return c.mutate(ctx, func(items []*T) ([]*T, error) {
		if c.indexOf(items, c.idOf(item)) >= 0 {
			return nil, fmt.Errorf("%s %s: %w", c.key, c.idOf(item), domain.ErrConflict)
		}
		return append(items, item), nil
	})
}

// update replaces the record with id by whatever fn leaves in it
func (c *kvCollection[T]) update(ctx context.Context, id string, fn func(items []*T, item *T) error) (*T, error) {
	var updated *T
	err := c.mutate(ctx, func(items []*T) ([]*T, error) {
		updated = nil
		i := c.indexOf(items, id)
		if i < 0 {
			return nil, domain.ErrNotFound
		}
		if err := fn(items, items[i]); err != nil {
			return nil, err
		}
		updated = items[i]
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (c *kvCollection[T]) remove(ctx context.Context, id string) error {
	return c.mutate(ctx, func(items []*T) ([]*T, error) {
		i := c.indexOf(items, id)
		if i < 0 {
			return nil, domain.ErrNotFound
		}
		return append(items[:i], items[i+1:]...), nil
	})
}
