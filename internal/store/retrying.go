package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/ibuddy-app/ibuddy-service/internal/retry"
)

type retryingTable struct {
	next Table
	cfg  retry.Config
}

// WithRetry wraps t so transient backend failures are retried with backoff.
// Not-found and condition failures are returned immediately.
func WithRetry(t Table, cfg retry.Config) Table {
	if cfg.MaxAttempts <= 1 {
		return t
	}
	return &retryingTable{next: t, cfg: cfg}
}

func (r *retryingTable) do(ctx context.Context, op func() error) error {
	return retry.Do(ctx, r.cfg, IsPermanent, op)
}

func (r *retryingTable) Schema() Schema { return r.next.Schema() }

func (r *retryingTable) Get(ctx context.Context, key Key) (item Item, err error) {
	err = r.do(ctx, func() error {
		item, err = r.next.Get(ctx, key)
		return err
	})
	return item, err
}

func (r *retryingTable) Put(ctx context.Context, key Key, item Item) error {
	return r.do(ctx, func() error { return r.next.Put(ctx, key, item) })
}

// Create retries like the other writes. A condition failure after a failed
// attempt is checked against the stored item, since that attempt may have
// committed before its reply was lost.
func (r *retryingTable) Create(ctx context.Context, key Key, item Item) error {
	retried := false
	return r.do(ctx, func() error {
		err := r.next.Create(ctx, key, item)
		if retried && errors.Is(err, ErrConditionFailed) && r.holds(ctx, key, item) {
			return nil
		}
		retried = true
		return err
	})
}

// holds reports whether the item stored under key is the one given.
func (r *retryingTable) holds(ctx context.Context, key Key, item Item) bool {
	stored, err := r.next.Get(ctx, key)
	if err != nil {
		return false
	}
	want, err := json.Marshal(PrepareItem(key, item))
	if err != nil {
		return false
	}
	got, err := json.Marshal(stored)
	if err != nil {
		return false
	}
	return bytes.Equal(want, got)
}

func (r *retryingTable) Update(ctx context.Context, key Key, patch Item) (item Item, err error) {
	err = r.do(ctx, func() error {
		item, err = r.next.Update(ctx, key, patch)
		return err
	})
	return item, err
}

func (r *retryingTable) Delete(ctx context.Context, key Key) error {
	return r.do(ctx, func() error { return r.next.Delete(ctx, key) })
}

func (r *retryingTable) Query(ctx context.Context, pk, skPrefix string) (items []Item, err error) {
	err = r.do(ctx, func() error {
		items, err = r.next.Query(ctx, pk, skPrefix)
		return err
	})
	return items, err
}

func (r *retryingTable) QueryIndex(ctx context.Context, index, value string) (items []Item, err error) {
	err = r.do(ctx, func() error {
		items, err = r.next.QueryIndex(ctx, index, value)
		return err
	})
	return items, err
}

func (r *retryingTable) Scan(ctx context.Context, cond Condition) (items []Item, err error) {
	err = r.do(ctx, func() error {
		items, err = r.next.Scan(ctx, cond)
		return err
	})
	return items, err
}
