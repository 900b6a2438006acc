package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestProvider(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	p, err := New(Config{Client: rdb, CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return mr, p
}

func TestRedisEmptyValueIsAHit(t *testing.T) {
	ctx := context.Background()
	_, p := newTestProvider(t)

	if _, ok, err := p.Get(ctx, "cache:shop:1"); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	if ok, err := p.Set(ctx, "cache:shop:1", []byte{}, 1, time.Minute); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "cache:shop:1")
	if err != nil || !ok {
		t.Fatalf("null marker should be a hit: ok=%v err=%v", ok, err)
	}
	if b == nil || len(b) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", b)
	}
}

func TestRedisTTLAndDelete(t *testing.T) {
	ctx := context.Background()
	mr, p := newTestProvider(t)

	if _, err := p.Set(ctx, "a", []byte("v"), 1, 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("a"); ttl != 30*time.Second {
		t.Fatalf("ttl = %v", ttl)
	}
	if _, err := p.Set(ctx, "b", []byte("v"), 1, -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("b"); ttl != 0 {
		t.Fatalf("negative ttl should mean no expiry, got %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if _, ok, _ := p.Get(ctx, "a"); ok {
		t.Fatalf("entry survived its ttl")
	}
	if err := p.Del(ctx, "b"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "missing"); err != nil {
		t.Fatalf("Del missing: %v", err)
	}
	if mr.Exists("b") {
		t.Fatalf("b still present")
	}
}

func TestRedisErrorsSurface(t *testing.T) {
	ctx := context.Background()
	mr, p := newTestProvider(t)
	mr.Close()

	if _, _, err := p.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error from closed server")
	}
	if ok, err := p.Set(ctx, "k", []byte("v"), 1, 0); err == nil || ok {
		t.Fatalf("expected Set error, ok=%v err=%v", ok, err)
	}
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("want ErrNilClient, got %v", err)
	}
}
