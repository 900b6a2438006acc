// Package catalog serves shop rows through the cache shield and keeps the
// cache consistent on writes by updating the store first, then invalidating.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/unkn0wn-root/flashguard"
	"github.com/unkn0wn-root/flashguard/codec"
	"github.com/unkn0wn-root/flashguard/dlock"
	"github.com/unkn0wn-root/flashguard/provider"
	"github.com/unkn0wn-root/flashguard/store"
)

const Namespace = "shop"

var ErrInvalidID = errors.New("catalog: shop id must be positive")

type Options struct {
	Provider provider.Provider       // required
	Codec    codec.Codec[store.Shop] // nil => codec.Msgpack
	Locker   dlock.Locker            // nil => shield-owned dlock.Local
	Strategy flashguard.Strategy     // default read strategy
	Logger   flashguard.Logger       // nil => NopLogger
	Hooks    flashguard.Hooks        // nil => NopHooks
	Clock    func() time.Time        // nil => time.Now

	TTL            time.Duration
	NullTTL        time.Duration
	LogicalTTL     time.Duration
	LockLease      time.Duration
	RebuildWorkers int
}

type Catalog struct {
	shops  store.Shops
	shield flashguard.Shield[store.Shop]
	log    flashguard.Logger
}

func New(shops store.Shops, opts Options) (*Catalog, error) {
	if shops == nil {
		return nil, errors.New("catalog: shops store is required")
	}
	cd := opts.Codec
	if cd == nil {
		cd = codec.Msgpack[store.Shop]{}
	}
	log := opts.Logger
	if log == nil {
		log = flashguard.NopLogger{}
	}

	sh, err := flashguard.New(flashguard.Options[store.Shop]{
		Namespace:      Namespace,
		Provider:       opts.Provider,
		Codec:          cd,
		Loader:         loader(shops),
		Locker:         opts.Locker,
		Strategy:       opts.Strategy,
		Logger:         log,
		Hooks:          opts.Hooks,
		TTL:            opts.TTL,
		NullTTL:        opts.NullTTL,
		LogicalTTL:     opts.LogicalTTL,
		LockLease:      opts.LockLease,
		RebuildWorkers: opts.RebuildWorkers,
		Clock:          opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &Catalog{shops: shops, shield: sh, log: log}, nil
}

func loader(shops store.Shops) flashguard.LoaderFunc[store.Shop] {
	return func(ctx context.Context, id string) (store.Shop, bool, error) {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			// not a row id; cache it as missing like any other absent row
			return store.Shop{}, false, nil
		}
		shop, err := shops.GetShop(ctx, n)
		if errors.Is(err, store.ErrNotFound) {
			return store.Shop{}, false, nil
		}
		if err != nil {
			return store.Shop{}, false, err
		}
		return shop, true, nil
	}
}

// Shop reads one shop with the given strategy. A missing shop is
// (zero, false, nil).
func (c *Catalog) Shop(ctx context.Context, id int64, s flashguard.Strategy) (store.Shop, bool, error) {
	if id <= 0 {
		return store.Shop{}, false, ErrInvalidID
	}
	return c.shield.GetWith(ctx, strconv.FormatInt(id, 10), s)
}

// Update writes the row, then drops the cached copy. If the invalidation
// fails the row is still updated and the error says so; the stale entry lives
// until its TTL.
func (c *Catalog) Update(ctx context.Context, shop store.Shop) error {
	if shop.ID <= 0 {
		return ErrInvalidID
	}
	if err := c.shops.UpdateShop(ctx, shop); err != nil {
		return fmt.Errorf("catalog: update shop %d: %w", shop.ID, err)
	}
	if err := c.shield.Invalidate(ctx, strconv.FormatInt(shop.ID, 10)); err != nil {
		c.log.Error("shop updated but cache invalidation failed", flashguard.Fields{
			"shop_id": shop.ID, "err": err,
		})
		return fmt.Errorf("catalog: invalidate shop %d: %w", shop.ID, err)
	}
	return nil
}

// Prewarm loads hot shops into the cache for logical-expiration reads.
// It returns how many existed in the store.
func (c *Catalog) Prewarm(ctx context.Context, ids ...int64) (int, error) {
	var (
		found int
		errs  []error
	)
	for _, id := range ids {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidID, id))
			continue
		}
		_, ok, err := c.shield.Prewarm(ctx, strconv.FormatInt(id, 10))
		if err != nil {
			errs = append(errs, fmt.Errorf("prewarm shop %d: %w", id, err))
			continue
		}
		if ok {
			found++
		}
	}
	return found, errors.Join(errs...)
}

func (c *Catalog) Close(ctx context.Context) error { return c.shield.Close(ctx) }
