package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedis(rdb, "wbtest"), mr
}

func TestRedis_SetGet(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedisStore(t)

	if err := r.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := r.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("Get = %q, want %q", got, "v")
	}
}

func TestRedis_Expiry(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisStore(t)

	if err := r.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := r.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRedis_GetDel_SingleUse(t *testing.T) {
	ctx := context.Background()
	r, _ := newRedisStore(t)

	if err := r.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := r.GetDel(ctx, "k")
	if err != nil {
		t.Fatalf("first GetDel: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("GetDel = %q, want %q", got, "v")
	}
	if _, err := r.GetDel(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second GetDel: expected ErrNotFound, got %v", err)
	}
}

func TestRedis_Incr(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisStore(t)

	for want := int64(1); want <= 3; want++ {
		n, err := r.Incr(ctx, "attempts", time.Minute)
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != want {
			t.Fatalf("Incr = %d, want %d", n, want)
		}
	}

	// The counter restarts once its ttl elapses.
	mr.FastForward(2 * time.Minute)
	n, err := r.Incr(ctx, "attempts", time.Minute)
	if err != nil {
		t.Fatalf("Incr after expiry: %v", err)
	}
	if n != 1 {
		t.Fatalf("Incr after expiry = %d, want 1", n)
	}
}

func TestRedis_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	r, mr := newRedisStore(t)

	if err := r.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("wbtest:k") {
		t.Fatalf("expected namespaced key wbtest:k")
	}
}
