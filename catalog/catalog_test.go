package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/flashguard"
	"github.com/unkn0wn-root/flashguard/dlock"
	rp "github.com/unkn0wn-root/flashguard/provider/redis"
	"github.com/unkn0wn-root/flashguard/store"
	"github.com/unkn0wn-root/flashguard/store/sqlstore"
)

// countingShops counts store reads.
type countingShops struct {
	store.Shops
	gets atomic.Int64
}

func (c *countingShops) GetShop(ctx context.Context, id int64) (store.Shop, error) {
	c.gets.Add(1)
	return c.Shops.GetShop(ctx, id)
}

type fixture struct {
	mr    *miniredis.Miniredis
	shops *countingShops
	cat   *Catalog
}

func newFixture(t *testing.T, strategy flashguard.Strategy) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:       sqlstore.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "catalog.db"),
		EnsureSchema: true,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	prov, err := rp.New(rp.Config{Client: rdb})
	if err != nil {
		t.Fatalf("redis provider: %v", err)
	}
	locker, err := dlock.NewRedis(dlock.RedisConfig{Client: rdb})
	if err != nil {
		t.Fatalf("redis locker: %v", err)
	}

	shops := &countingShops{Shops: db}
	cat, err := New(shops, Options{
		Provider:   prov,
		Locker:     locker,
		Strategy:   strategy,
		LogicalTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		_ = cat.Close(ctx)
		_ = rdb.Close()
		_ = db.Close()
	})
	return &fixture{mr: mr, shops: shops, cat: cat}
}

func (f *fixture) seed(t *testing.T, name string) int64 {
	t.Helper()
	id, err := f.shops.CreateShop(context.Background(), store.Shop{Name: name, AvgPrice: 80, Score: 45})
	if err != nil {
		t.Fatalf("create shop: %v", err)
	}
	return id
}

func TestShopReadsThroughCacheOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashguard.StrategyMutex)
	id := f.seed(t, "Dumpling House")

	for i := 0; i < 3; i++ {
		shop, ok, err := f.cat.Shop(ctx, id, flashguard.StrategyMutex)
		if err != nil || !ok {
			t.Fatalf("Shop: ok=%v err=%v", ok, err)
		}
		if shop.Name != "Dumpling House" {
			t.Fatalf("name = %q", shop.Name)
		}
	}
	if got := f.shops.gets.Load(); got != 1 {
		t.Fatalf("store reads = %d, want 1", got)
	}
	if !f.mr.Exists("cache:shop:" + strconv.FormatInt(id, 10)) {
		t.Fatalf("cache entry not written")
	}
}

func TestMissingShopIsNegativelyCached(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashguard.StrategyPassThrough)

	for i := 0; i < 5; i++ {
		_, ok, err := f.cat.Shop(ctx, 404, flashguard.StrategyPassThrough)
		if err != nil || ok {
			t.Fatalf("Shop(404): ok=%v err=%v", ok, err)
		}
	}
	if got := f.shops.gets.Load(); got != 1 {
		t.Fatalf("store reads = %d, want 1", got)
	}
	if ttl := f.mr.TTL("cache:shop:404"); ttl <= 0 || ttl > 2*time.Minute {
		t.Fatalf("null marker ttl = %v", ttl)
	}
}

func TestUpdateWritesStoreThenInvalidates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashguard.StrategyMutex)
	id := f.seed(t, "Old Name")

	shop, _, err := f.cat.Shop(ctx, id, flashguard.StrategyMutex)
	if err != nil {
		t.Fatalf("Shop: %v", err)
	}
	shop.Name = "New Name"
	if err := f.cat.Update(ctx, shop); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if f.mr.Exists("cache:shop:" + strconv.FormatInt(id, 10)) {
		t.Fatalf("cache entry survived Update")
	}

	got, ok, err := f.cat.Shop(ctx, id, flashguard.StrategyMutex)
	if err != nil || !ok {
		t.Fatalf("Shop after update: ok=%v err=%v", ok, err)
	}
	if got.Name != "New Name" {
		t.Fatalf("name = %q, want New Name", got.Name)
	}
}

func TestUpdateRejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashguard.StrategyMutex)

	if err := f.cat.Update(ctx, store.Shop{Name: "x"}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("want ErrInvalidID, got %v", err)
	}
	if _, _, err := f.cat.Shop(ctx, 0, flashguard.StrategyMutex); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("want ErrInvalidID, got %v", err)
	}
	if err := f.cat.Update(ctx, store.Shop{ID: 777, Name: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPrewarmServesLogicalReadsWithoutStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashguard.StrategyLogical)
	a := f.seed(t, "A")
	b := f.seed(t, "B")

	found, err := f.cat.Prewarm(ctx, a, b, 999)
	if err != nil {
		t.Fatalf("Prewarm: %v", err)
	}
	if found != 2 {
		t.Fatalf("found = %d, want 2", found)
	}
	before := f.shops.gets.Load()

	for _, id := range []int64{a, b} {
		shop, ok, err := f.cat.Shop(ctx, id, flashguard.StrategyLogical)
		if err != nil || !ok || shop.ID != id {
			t.Fatalf("logical Shop(%d): %+v ok=%v err=%v", id, shop, ok, err)
		}
	}
	if got := f.shops.gets.Load(); got != before {
		t.Fatalf("logical reads touched the store: %d -> %d", before, got)
	}
	if ttl := f.mr.TTL("cache:shop:" + strconv.FormatInt(a, 10)); ttl != 0 {
		t.Fatalf("prewarmed entry has physical ttl %v", ttl)
	}

	if _, err := f.cat.Prewarm(ctx, -1); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("want ErrInvalidID, got %v", err)
	}
}

func TestNewRequiresShops(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Fatal("expected error without shops")
	}
}
