package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

func newTestTable(t *testing.T) (*Table, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	schema := store.Schema{
		Name:    "mentees",
		Indexes: map[string]string{"byBuddy": "buddyId"},
	}
	return New(client, "test", schema), mr
}

func TestGetMissing(t *testing.T) {
	tbl, _ := newTestTable(t)
	_, err := tbl.Get(context.Background(), store.Key{PK: "Mentee#1", SK: "Mentee#1"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestPutGetQuery(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTestTable(t)

	root := store.Key{PK: "Mentee#1", SK: "Mentee#1"}
	if err := tbl.Put(ctx, root, store.Item{"id": "1", "buddyId": "b1"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	for _, id := range []string{"b", "a"} {
		k := store.Key{PK: "Mentee#1", SK: "Note#" + id}
		if err := tbl.Put(ctx, k, store.Item{"id": id}); err != nil {
			t.Fatalf("Put(note) error = %v", err)
		}
	}

	got, err := tbl.Get(ctx, root)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.String("buddyId") != "b1" || got.Key() != root {
		t.Errorf("Get() = %v", got)
	}

	notes, err := tbl.Query(ctx, "Mentee#1", "Note#")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(notes) != 2 || notes[0].String("id") != "a" {
		t.Errorf("Query() = %v, want two notes sorted by sort key", notes)
	}

	all, err := tbl.Query(ctx, "Mentee#1", "")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Query(all) returned %d items, want 3", len(all))
	}
}

func TestCreateIsConditional(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTestTable(t)
	key := store.Key{PK: "Mentee#1", SK: "Mentee#1"}

	if err := tbl.Create(ctx, key, store.Item{"id": "1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	err := tbl.Create(ctx, key, store.Item{"id": "1"})
	if !errors.Is(err, store.ErrConditionFailed) {
		t.Fatalf("second Create() error = %v, want ErrConditionFailed", err)
	}
}

func TestUpdateMergesAndMaintainsIndex(t *testing.T) {
	ctx := context.Background()
	tbl, _ := newTestTable(t)
	key := store.Key{PK: "Mentee#1", SK: "Mentee#1"}

	if _, err := tbl.Update(ctx, key, store.Item{"status": "met"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}

	if err := tbl.Put(ctx, key, store.Item{"id": "1", "buddyId": "b1", "status": "assigned"}); err != nil {
		t.Fatal(err)
	}
	updated, err := tbl.Update(ctx, key, store.Item{"buddyId": "b2"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.String("status") != "assigned" || updated.String("buddyId") != "b2" {
		t.Errorf("Update() = %v", updated)
	}

	old, err := tbl.QueryIndex(ctx, "byBuddy", "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(old) != 0 {
		t.Errorf("stale index entry for b1: %v", old)
	}
	current, err := tbl.QueryIndex(ctx, "byBuddy", "b2")
	if err != nil {
		t.Fatal(err)
	}
	if len(current) != 1 {
		t.Errorf("QueryIndex(b2) = %v", current)
	}
}

func TestQueryUnknownIndex(t *testing.T) {
	tbl, _ := newTestTable(t)
	_, err := tbl.QueryIndex(context.Background(), "byOwner", "x")
	if !errors.Is(err, store.ErrUnknownIndex) {
		t.Fatalf("QueryIndex() error = %v, want ErrUnknownIndex", err)
	}
}

func TestDeleteAndScan(t *testing.T) {
	ctx := context.Background()
	tbl, mr := newTestTable(t)

	for _, id := range []string{"1", "2"} {
		key := store.Key{PK: "Mentee#" + id, SK: "Mentee#" + id}
		if err := tbl.Put(ctx, key, store.Item{"id": id, "buddyId": "b" + id}); err != nil {
			t.Fatal(err)
		}
	}

	items, err := tbl.Scan(ctx, store.Eq{Attr: "buddyId", Value: "b2"})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(items) != 1 || items[0].String("id") != "2" {
		t.Errorf("Scan() = %v", items)
	}

	key := store.Key{PK: "Mentee#1", SK: "Mentee#1"}
	if err := tbl.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := tbl.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() should be idempotent, got %v", err)
	}

	all, err := tbl.Scan(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("Scan() after delete = %v", all)
	}
	if ok, _ := mr.SIsMember(tbl.partitionsKey(), "Mentee#1"); ok {
		t.Error("emptied partition still registered")
	}
	if members, _ := mr.SMembers(tbl.indexKey("byBuddy", "b1")); len(members) != 0 {
		t.Errorf("index still references deleted item: %v", members)
	}
}
