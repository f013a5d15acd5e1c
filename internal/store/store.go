// Package store defines the key-value table abstraction the repositories are
// written against. Every item lives under a partition key and a sort key;
// tables may declare secondary indexes over a single string attribute.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

const (
	AttrPK = "pk"
	AttrSK = "sk"
)

var (
	ErrNotFound        = errors.New("store: item not found")
	ErrConditionFailed = errors.New("store: condition check failed")
	ErrUnknownIndex    = errors.New("store: unknown index")
)

type Key struct {
	PK string `json:"pk"`
	SK string `json:"sk"`
}

func (k Key) String() string {
	return k.PK + "|" + k.SK
}

// Item is a schemaless attribute map. Items read from a table carry their
// own pk and sk attributes.
type Item map[string]any

// Key extracts the item's key attributes.
func (it Item) Key() Key {
	pk, _ := it[AttrPK].(string)
	sk, _ := it[AttrSK].(string)
	return Key{PK: pk, SK: sk}
}

// String returns a string attribute or "".
func (it Item) String(attr string) string {
	s, _ := it[attr].(string)
	return s
}

// withKey returns a copy of it carrying key.
func (it Item) withKey(key Key) Item {
	out := make(Item, len(it)+2)
	for k, v := range it {
		out[k] = v
	}
	out[AttrPK] = key.PK
	out[AttrSK] = key.SK
	return out
}

// Schema names a table and its secondary indexes (index name to attribute).
type Schema struct {
	Name    string
	Indexes map[string]string
}

// IndexAttr returns the attribute backing index.
func (s Schema) IndexAttr(index string) (string, error) {
	attr, ok := s.Indexes[index]
	if !ok {
		return "", fmt.Errorf("%w %q on table %s", ErrUnknownIndex, index, s.Name)
	}
	return attr, nil
}

// Table is implemented by every backend.
type Table interface {
	Schema() Schema
	Get(ctx context.Context, key Key) (Item, error)
	// Put writes the item unconditionally.
	Put(ctx context.Context, key Key, item Item) error
	// Create writes the item only if the key is free; otherwise ErrConditionFailed.
	Create(ctx context.Context, key Key, item Item) error
	// Update merges patch into an existing item and returns the result.
	// Missing items yield ErrNotFound.
	Update(ctx context.Context, key Key, patch Item) (Item, error)
	// Delete is idempotent.
	Delete(ctx context.Context, key Key) error
	// Query lists a partition, optionally restricted to sort keys starting
	// with skPrefix, in ascending sort key order.
	Query(ctx context.Context, pk, skPrefix string) ([]Item, error)
	// QueryIndex lists items whose indexed attribute equals value.
	QueryIndex(ctx context.Context, index, value string) ([]Item, error)
	// Scan lists every item matching cond. A nil cond matches everything.
	Scan(ctx context.Context, cond Condition) ([]Item, error)
}

// Marshal converts a JSON-tagged value into an Item.
func Marshal(v any) (Item, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: marshal: %w", err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("store: marshal: %w", err)
	}
	return item, nil
}

// Unmarshal fills v from an Item.
func Unmarshal(item Item, v any) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("store: unmarshal: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: unmarshal: %w", err)
	}
	return nil
}

// Merge returns base overlaid with patch. Neither argument is modified.
func Merge(base, patch Item) Item {
	out := make(Item, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if k == AttrPK || k == AttrSK {
			continue
		}
		out[k] = v
	}
	return out
}

// PrepareItem stamps the key onto item before it is written.
func PrepareItem(key Key, item Item) Item {
	return item.withKey(key)
}

// SortBySK orders items by sort key, which is the order Query guarantees.
func SortBySK(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].String(AttrSK) < items[j].String(AttrSK)
	})
}

// IsPermanent reports errors a retry cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConditionFailed) ||
		errors.Is(err, ErrUnknownIndex)
}
