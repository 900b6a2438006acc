package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/flashguard/catalog"
	"github.com/unkn0wn-root/flashguard/config"
	"github.com/unkn0wn-root/flashguard/dlock"
	"github.com/unkn0wn-root/flashguard/idgen"
	"github.com/unkn0wn-root/flashguard/purchase"
	"github.com/unkn0wn-root/flashguard/store"
	"github.com/unkn0wn-root/flashguard/store/sqlstore"
)

const simConcurrency = 64

type summary struct {
	mu        sync.Mutex
	attempts  int
	outcomes  map[purchase.Outcome]int
	lockBusy  int
	shopReads int
	orders    map[int64]uint64 // user -> order id
}

func seed(ctx context.Context, db *sqlstore.Store, cfg config.Config) (shopID, promoID int64, err error) {
	shopID, err = db.CreateShop(ctx, store.Shop{
		Name:     "Flash Noodles",
		TypeID:   1,
		Address:  "88 Market St",
		AvgPrice: 35,
		Score:    48,
	})
	if err != nil {
		return 0, 0, err
	}
	now := time.Now()
	promoID, err = db.CreatePromotion(ctx, store.Promotion{
		ShopID:  shopID,
		Title:   "Half price noodles",
		Stock:   cfg.SimStock,
		BeginAt: now.Add(-time.Minute),
		EndAt:   now.Add(cfg.SimWindow),
	})
	if err != nil {
		return 0, 0, err
	}
	return shopID, promoID, nil
}

// simulate lets every user look at the shop page, then hammer the buy
// button SimAttempts times concurrently.
func simulate(ctx context.Context, cfg config.Config, cat *catalog.Catalog, pipe *purchase.Pipeline, shopID, promoID int64) (*summary, error) {
	sum := &summary{
		outcomes: make(map[purchase.Outcome]int),
		orders:   make(map[int64]uint64),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(simConcurrency)

	for u := 1; u <= cfg.SimUsers; u++ {
		userID := int64(u)
		for a := 0; a < cfg.SimAttempts; a++ {
			g.Go(func() error {
				if _, ok, err := cat.Shop(gctx, shopID, cfg.ReadStrategy()); err != nil {
					return fmt.Errorf("read shop: %w", err)
				} else if ok {
					sum.mu.Lock()
					sum.shopReads++
					sum.mu.Unlock()
				}

				res, err := pipe.PlaceOrder(gctx, userID, promoID)
				sum.mu.Lock()
				defer sum.mu.Unlock()
				sum.attempts++
				if errors.Is(err, dlock.ErrNotAcquired) {
					sum.lockBusy++
					return nil
				}
				if err != nil {
					return err
				}
				sum.outcomes[res.Outcome]++
				if res.Ordered() {
					if prev, dup := sum.orders[userID]; dup {
						return fmt.Errorf("user %d ordered twice: %d and %d", userID, prev, res.OrderID)
					}
					sum.orders[userID] = res.OrderID
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sum, nil
}

// verify cross-checks the simulation against the database.
func verify(ctx context.Context, db *sqlstore.Store, promoID, initialStock int64, sum *summary) error {
	promo, err := db.GetPromotion(ctx, promoID)
	if err != nil {
		return err
	}
	orders, err := db.OrdersForPromotion(ctx, promoID)
	if err != nil {
		return err
	}

	if promo.Stock < 0 {
		return fmt.Errorf("stock went negative: %d", promo.Stock)
	}
	if sold := initialStock - promo.Stock; sold != int64(len(orders)) {
		return fmt.Errorf("stock sold %d but %d orders exist", sold, len(orders))
	}
	if len(orders) != len(sum.orders) {
		return fmt.Errorf("%d orders in store, %d reported", len(orders), len(sum.orders))
	}
	seen := make(map[int64]bool, len(orders))
	var last time.Time
	for _, o := range orders {
		if seen[o.UserID] {
			return fmt.Errorf("user %d has two orders", o.UserID)
		}
		seen[o.UserID] = true
		ts, _ := idgen.Decode(o.ID)
		if ts.Before(last) {
			return fmt.Errorf("order id %d decodes out of order", o.ID)
		}
		last = ts
	}
	return nil
}
