// Package redisstore implements store.Table on Redis.
//
// Layout per table:
//
//	<ns>:<table>:p:<pk>            hash, field = sort key, value = JSON item
//	<ns>:<table>:partitions        set of partition keys (drives Scan)
//	<ns>:<table>:i:<index>:<value> set of "pk\x00sk" members
//
// Writes WATCH the partition hash so index maintenance stays consistent with
// the item it describes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

const (
	memberSep    = "\x00"
	maxTxRetries = 10
)

type Table struct {
	client    redis.UniversalClient
	namespace string
	schema    store.Schema
}

var _ store.Table = (*Table)(nil)

func New(client redis.UniversalClient, namespace string, schema store.Schema) *Table {
	if namespace == "" {
		namespace = "ibuddy"
	}
	return &Table{client: client, namespace: namespace, schema: schema}
}

func (t *Table) Schema() store.Schema { return t.schema }

func (t *Table) partitionKey(pk string) string {
	return fmt.Sprintf("%s:%s:p:%s", t.namespace, t.schema.Name, pk)
}

func (t *Table) partitionsKey() string {
	return fmt.Sprintf("%s:%s:partitions", t.namespace, t.schema.Name)
}

func (t *Table) indexKey(index, value string) string {
	return fmt.Sprintf("%s:%s:i:%s:%s", t.namespace, t.schema.Name, index, value)
}

func member(key store.Key) string {
	return key.PK + memberSep + key.SK
}

func parseMember(m string) (store.Key, bool) {
	pk, sk, ok := strings.Cut(m, memberSep)
	return store.Key{PK: pk, SK: sk}, ok
}

func decode(data string) (store.Item, error) {
	var item store.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("redisstore: decode item: %w", err)
	}
	return item, nil
}

func (t *Table) Get(ctx context.Context, key store.Key) (store.Item, error) {
	data, err := t.client.HGet(ctx, t.partitionKey(key.PK), key.SK).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redisstore: get %s: %w", key, err)
	}
	return decode(data)
}

func (t *Table) Put(ctx context.Context, key store.Key, item store.Item) error {
	_, err := t.mutate(ctx, key, func(store.Item) (store.Item, error) {
		return store.PrepareItem(key, item), nil
	})
	return err
}

func (t *Table) Create(ctx context.Context, key store.Key, item store.Item) error {
	_, err := t.mutate(ctx, key, func(old store.Item) (store.Item, error) {
		if old != nil {
			return nil, store.ErrConditionFailed
		}
		return store.PrepareItem(key, item), nil
	})
	return err
}

func (t *Table) Update(ctx context.Context, key store.Key, patch store.Item) (store.Item, error) {
	return t.mutate(ctx, key, func(old store.Item) (store.Item, error) {
		if old == nil {
			return nil, store.ErrNotFound
		}
		return store.Merge(old, patch), nil
	})
}

func (t *Table) Delete(ctx context.Context, key store.Key) error {
	_, err := t.mutate(ctx, key, func(store.Item) (store.Item, error) {
		return nil, nil
	})
	return err
}

// mutate reads the current item under WATCH, asks fn for the replacement
// (nil deletes) and writes it together with its index entries.
func (t *Table) mutate(ctx context.Context, key store.Key, fn func(old store.Item) (store.Item, error)) (store.Item, error) {
	pkey := t.partitionKey(key.PK)
	var result store.Item

	txf := func(tx *redis.Tx) error {
		var old store.Item
		data, err := tx.HGet(ctx, pkey, key.SK).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if old, err = decode(data); err != nil {
				return err
			}
		}

		next, err := fn(old)
		if err != nil {
			return err
		}
		if old == nil && next == nil {
			result = nil
			return nil
		}

		var payload []byte
		if next != nil {
			if payload, err = json.Marshal(next); err != nil {
				return fmt.Errorf("redisstore: encode item: %w", err)
			}
		}

		emptied := false
		if next == nil {
			n, err := tx.HLen(ctx, pkey).Result()
			if err != nil {
				return err
			}
			emptied = n <= 1
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			t.unindex(ctx, pipe, key, old)
			if next == nil {
				pipe.HDel(ctx, pkey, key.SK)
				if emptied {
					pipe.SRem(ctx, t.partitionsKey(), key.PK)
				}
				return nil
			}
			pipe.HSet(ctx, pkey, key.SK, payload)
			pipe.SAdd(ctx, t.partitionsKey(), key.PK)
			t.index(ctx, pipe, key, next)
			return nil
		})
		result = next
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := t.client.Watch(ctx, txf, pkey)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if store.IsPermanent(err) {
			return nil, err
		}
		return nil, fmt.Errorf("redisstore: write %s: %w", key, err)
	}
	return nil, fmt.Errorf("redisstore: write %s: %w", key, redis.TxFailedErr)
}

func (t *Table) index(ctx context.Context, pipe redis.Pipeliner, key store.Key, item store.Item) {
	for index, attr := range t.schema.Indexes {
		if v := item.String(attr); v != "" {
			pipe.SAdd(ctx, t.indexKey(index, v), member(key))
		}
	}
}

func (t *Table) unindex(ctx context.Context, pipe redis.Pipeliner, key store.Key, item store.Item) {
	if item == nil {
		return
	}
	for index, attr := range t.schema.Indexes {
		if v := item.String(attr); v != "" {
			pipe.SRem(ctx, t.indexKey(index, v), member(key))
		}
	}
}

func (t *Table) Query(ctx context.Context, pk, skPrefix string) ([]store.Item, error) {
	fields, err := t.client.HGetAll(ctx, t.partitionKey(pk)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: query %s: %w", pk, err)
	}
	items := make([]store.Item, 0, len(fields))
	for sk, data := range fields {
		if !strings.HasPrefix(sk, skPrefix) {
			continue
		}
		item, err := decode(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	store.SortBySK(items)
	return items, nil
}

func (t *Table) QueryIndex(ctx context.Context, index, value string) ([]store.Item, error) {
	if _, err := t.schema.IndexAttr(index); err != nil {
		return nil, err
	}
	members, err := t.client.SMembers(ctx, t.indexKey(index, value)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: query index %s: %w", index, err)
	}
	sort.Strings(members)

	keys := make([]store.Key, 0, len(members))
	for _, m := range members {
		if k, ok := parseMember(m); ok {
			keys = append(keys, k)
		}
	}
	return t.fetch(ctx, keys)
}

// fetch loads items in one round trip, skipping keys deleted in between.
func (t *Table) fetch(ctx context.Context, keys []store.Key) ([]store.Item, error) {
	if len(keys) == 0 {
		return []store.Item{}, nil
	}
	pipe := t.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGet(ctx, t.partitionKey(k.PK), k.SK)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redisstore: fetch: %w", err)
	}

	items := make([]store.Item, 0, len(keys))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redisstore: fetch: %w", err)
		}
		item, err := decode(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (t *Table) Scan(ctx context.Context, cond store.Condition) ([]store.Item, error) {
	partitions, err := t.client.SMembers(ctx, t.partitionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: scan: %w", err)
	}
	sort.Strings(partitions)
	if len(partitions) == 0 {
		return []store.Item{}, nil
	}

	pipe := t.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(partitions))
	for i, pk := range partitions {
		cmds[i] = pipe.HGetAll(ctx, t.partitionKey(pk))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redisstore: scan: %w", err)
	}

	var items []store.Item
	for _, cmd := range cmds {
		var partition []store.Item
		for _, data := range cmd.Val() {
			item, err := decode(data)
			if err != nil {
				return nil, err
			}
			partition = append(partition, item)
		}
		store.SortBySK(partition)
		items = append(items, partition...)
	}
	return store.Filter(items, cond), nil
}
