package tenf

import (
	"context"
	"iter"
	"strings"
	"time"
)

// Get reads the record under key and decodes it into a T.
func Get[T any](ctx context.Context, s *Store, key string) (T, error) {
	var v T
	if err := s.ReadInto(ctx, key, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Put writes v under key.
func Put[T any](ctx context.Context, s *Store, key string, v T) error {
	return s.Write(ctx, key, v)
}

// Collection is a typed handle on one collection of a Store. Records are
// addressed by partition and entity; the key layout is
// <collection>/<partition>/<entity>.json.
//
// Example:
//
//	type FollowValidation struct {
//	    Staff     string    `json:"staff"`
//	    Validated time.Time `json:"validated"`
//	}
//
//	follows := tenf.NewCollection[FollowValidation](store, tenf.FollowValidations)
//	err := follows.Put(ctx, "2024-06", "alice", FollowValidation{Staff: "alice"})
type Collection[T any] struct {
	store *Store
	name  string
}

// NewCollection returns a typed handle on the named collection.
func NewCollection[T any](s *Store, name string) *Collection[T] {
	return &Collection[T]{store: s, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Key returns the key of entity in partition.
func (c *Collection[T]) Key(partition, entity string) Key {
	return NewKey(c.name, partition, entity)
}

// MonthKey returns the key of entity in the month partition containing t.
func (c *Collection[T]) MonthKey(t time.Time, entity string) Key {
	return MonthKey(c.name, t, entity)
}

// Get reads and decodes one entity.
func (c *Collection[T]) Get(ctx context.Context, partition, entity string) (T, error) {
	k := c.Key(partition, entity)
	if err := k.Validate(); err != nil {
		var zero T
		return zero, err
	}
	return Get[T](ctx, c.store, k.String())
}

// Put writes one entity.
func (c *Collection[T]) Put(ctx context.Context, partition, entity string, v T) error {
	k := c.Key(partition, entity)
	if err := k.Validate(); err != nil {
		return err
	}
	return Put(ctx, c.store, k.String(), v)
}

// Delete removes one entity. It fails with NotFoundError when absent.
func (c *Collection[T]) Delete(ctx context.Context, partition, entity string) error {
	k := c.Key(partition, entity)
	if err := k.Validate(); err != nil {
		return err
	}
	return c.store.Delete(ctx, k.String())
}

// List returns the keys stored in partition. An empty partition lists the
// whole collection.
func (c *Collection[T]) List(ctx context.Context, partition string) ([]string, error) {
	return c.store.List(ctx, c.prefix(partition))
}

// Keys is the lazy form of List.
func (c *Collection[T]) Keys(ctx context.Context, partition string) iter.Seq2[string, error] {
	return c.store.Keys(ctx, c.prefix(partition))
}

// Entities returns the entity names stored in partition, without the
// collection, partition or ".json" suffix. Keys that do not follow the
// three-segment layout are skipped.
func (c *Collection[T]) Entities(ctx context.Context, partition string) ([]string, error) {
	partition = strings.TrimSuffix(partition, "/")
	if partition == "" {
		return nil, &InvalidKeyError{Key: c.name, Reason: "empty partition"}
	}
	keys, err := c.List(ctx, partition)
	if err != nil {
		return nil, err
	}

	entities := make([]string, 0, len(keys))
	for _, key := range keys {
		k, err := ParseKey(key)
		if err != nil || k.Collection != c.name || k.Partition != partition {
			continue
		}
		entities = append(entities, k.Entity)
	}
	return entities, nil
}

func (c *Collection[T]) prefix(partition string) string {
	if partition == "" {
		return CollectionPrefix(c.name)
	}
	return PartitionPrefix(c.name, strings.TrimSuffix(partition, "/"))
}
