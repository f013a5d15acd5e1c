package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/keys"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

// rootKey addresses an entity stored alone in its partition.
func rootKey(k keys.EntityKey) store.Key {
	return store.Key{PK: k.String(), SK: k.String()}
}

func childKey(k keys.ChildKey) store.Key {
	return store.Key{PK: k.PartitionKey(), SK: k.SortKey()}
}

// get returns a nil item for a missing key.
func get(ctx context.Context, t store.Table, key store.Key) (store.Item, error) {
	item, err := t.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return item, err
}

func decode[T any](item store.Item) (*T, error) {
	if item == nil {
		return nil, nil
	}
	var v T
	if err := store.Unmarshal(item, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeAll[T any](items []store.Item) ([]*T, error) {
	out := make([]*T, 0, len(items))
	for _, it := range items {
		v, err := decode[T](it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// patchItem encodes the non-nil fields of patch and stamps updatedAt.
func patchItem(patch any, now time.Time) (store.Item, error) {
	item, err := store.Marshal(patch)
	if err != nil {
		return nil, err
	}
	item["updatedAt"] = now.Format(time.RFC3339Nano)
	return item, nil
}

// update applies patch and maps a missing item to repositories.ErrNotFound.
func update[T any](ctx context.Context, t store.Table, key store.Key, patch store.Item) (*T, error) {
	item, err := t.Update(ctx, key, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", key.PK, repositories.ErrNotFound)
		}
		return nil, err
	}
	return decode[T](item)
}

// create writes a new item and reads it back. A missing read-back is an
// invariant violation.
func create[T any](ctx context.Context, t store.Table, key store.Key, entity any) (*T, error) {
	item, err := store.Marshal(entity)
	if err != nil {
		return nil, err
	}
	if err := t.Create(ctx, key, item); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return nil, fmt.Errorf("%s: %w", key.PK, repositories.ErrAlreadyExists)
		}
		return nil, err
	}
	stored, err := get(ctx, t, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%s missing after create: %w", key, repositories.ErrInvariantViolation)
	}
	return decode[T](stored)
}
