package bigcache

import (
	"context"
	"testing"
	"time"
)

func TestBigcacheSetGetDel(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, Config{LifeWindow: time.Minute, MaxEntriesInWindow: 100, MaxEntrySize: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	if _, ok, err := p.Get(ctx, "cache:shop:1"); err != nil || ok {
		t.Fatalf("miss: ok=%v err=%v", ok, err)
	}
	// per-entry ttl is ignored; the life window applies
	if ok, err := p.Set(ctx, "cache:shop:1", []byte("row"), 1, time.Nanosecond); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, "cache:shop:1")
	if err != nil || !ok || string(b) != "row" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}

	if ok, err := p.Set(ctx, "cache:shop:404", []byte{}, 1, 0); err != nil || !ok {
		t.Fatalf("Set empty: ok=%v err=%v", ok, err)
	}
	if b, ok, _ := p.Get(ctx, "cache:shop:404"); !ok || b == nil || len(b) != 0 {
		t.Fatalf("null marker: %#v ok=%v", b, ok)
	}

	if err := p.Del(ctx, "cache:shop:1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if err := p.Del(ctx, "cache:shop:1"); err != nil {
		t.Fatalf("Del missing: %v", err)
	}
	if _, ok, _ := p.Get(ctx, "cache:shop:1"); ok {
		t.Fatalf("entry survived Del")
	}
}

func TestBigcacheRequiresLifeWindow(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without LifeWindow")
	}
}
