package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type entry struct {
	Name string `json:"name"`
}

func newHelper(t *testing.T) (*Helper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHelper(client, "test:", nil), mr
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c, mr := newHelper(t)

	loads := 0
	load := func() (*entry, error) {
		loads++
		return &entry{Name: "ada"}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := GetOrLoad(ctx, c, "u1", time.Minute, load)
		if err != nil || got.Name != "ada" {
			t.Fatalf("GetOrLoad() = %v, %v", got, err)
		}
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}
	if !mr.Exists("test:u1") {
		t.Error("expected prefixed key in redis")
	}

	c.SafeDelete(ctx, "u1")
	if _, err := GetOrLoad(ctx, c, "u1", time.Minute, load); err != nil {
		t.Fatal(err)
	}
	if loads != 2 {
		t.Errorf("loads after delete = %d, want 2", loads)
	}
}

func TestGetOrLoadSkipsMisses(t *testing.T) {
	ctx := context.Background()
	c, mr := newHelper(t)

	got, err := GetOrLoad(ctx, c, "gone", time.Minute, func() (*entry, error) { return nil, nil })
	if err != nil || got != nil {
		t.Fatalf("GetOrLoad() = %v, %v", got, err)
	}
	if mr.Exists("test:gone") {
		t.Error("nil result must not be cached")
	}

	boom := errors.New("boom")
	if _, err := GetOrLoad(ctx, c, "err", time.Minute, func() (*entry, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestHelperWithoutClient(t *testing.T) {
	ctx := context.Background()
	c := NewHelper(nil, "x:", nil)

	if err := c.Get(ctx, "k", &entry{}); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get() err = %v", err)
	}
	if err := c.Set(ctx, "k", entry{}, time.Minute); err != nil {
		t.Errorf("Set() err = %v", err)
	}
	got, err := GetOrLoad(ctx, c, "k", time.Minute, func() (*entry, error) { return &entry{Name: "x"}, nil })
	if err != nil || got.Name != "x" {
		t.Errorf("GetOrLoad() = %v, %v", got, err)
	}
	if err := c.HealthCheck(ctx); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("HealthCheck() err = %v", err)
	}
}
