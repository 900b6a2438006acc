// Package purchase places flash-sale orders: at most one order per user per
// promotion, and stock never drops below zero.
//
// The flow per call:
//
//	load promotion -> window and stock pre-check (advisory)
//	-> per-user distributed lock
//	-> tx { count orders, conditional decrement, new id, insert } -> commit
//	-> release lock
//
// The lock is held across commit so a second request from the same user
// cannot pass the duplicate check before the first insert is visible. Stock
// safety comes from the conditional UPDATE alone; the lock plays no part in it.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/unkn0wn-root/flashguard"
	"github.com/unkn0wn-root/flashguard/dlock"
	"github.com/unkn0wn-root/flashguard/internal/util"
	"github.com/unkn0wn-root/flashguard/store"
)

const (
	DefaultLockLease   = 10 * time.Second
	DefaultLockWait    = 2 * time.Second
	DefaultRetryEvery  = 20 * time.Millisecond
	DefaultIDNamespace = "order"

	lockNamespace = "order"
)

var ErrInvalidUser = errors.New("purchase: user id must be positive")

// IDGenerator is satisfied by *idgen.Generator.
type IDGenerator interface {
	Next(ctx context.Context, namespace string) (uint64, error)
}

type Config struct {
	Promotions store.Promotions // required
	Store      store.TxRunner   // required
	Locker     dlock.Locker     // required; must be shared by every instance
	IDs        IDGenerator      // required

	Logger flashguard.Logger // nil => NopLogger
	Clock  func() time.Time  // nil => time.Now

	LockLease  time.Duration // 0 => DefaultLockLease
	LockWait   time.Duration // 0 => DefaultLockWait; bounds Acquire
	RetryEvery time.Duration // 0 => DefaultRetryEvery

	IDNamespace string // "" => DefaultIDNamespace
}

type Pipeline struct {
	promos store.Promotions
	db     store.TxRunner
	locker dlock.Locker
	ids    IDGenerator
	log    flashguard.Logger
	now    func() time.Time

	lease, wait, retry time.Duration
	idNS               string
}

func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Promotions == nil:
		return nil, errors.New("purchase: Promotions is required")
	case cfg.Store == nil:
		return nil, errors.New("purchase: Store is required")
	case cfg.Locker == nil:
		return nil, errors.New("purchase: Locker is required")
	case cfg.IDs == nil:
		return nil, errors.New("purchase: IDs is required")
	}

	p := &Pipeline{
		promos: cfg.Promotions,
		db:     cfg.Store,
		locker: cfg.Locker,
		ids:    cfg.IDs,
		log:    cfg.Logger,
		now:    cfg.Clock,
		lease:  cfg.LockLease,
		wait:   cfg.LockWait,
		retry:  cfg.RetryEvery,
		idNS:   cfg.IDNamespace,
	}
	if p.log == nil {
		p.log = flashguard.NopLogger{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.lease <= 0 {
		p.lease = DefaultLockLease
	}
	if p.wait <= 0 {
		p.wait = DefaultLockWait
	}
	if p.retry <= 0 {
		p.retry = DefaultRetryEvery
	}
	if p.idNS == "" {
		p.idNS = DefaultIDNamespace
	}
	return p, nil
}

// PlaceOrder tries to create one order for userID on promotionID.
// Business rejections come back as a Result with nil error. Errors are
// infrastructure faults or a per-user lock that stayed busy past LockWait.
// The latter wraps dlock.ErrNotAcquired: concurrent requests for the same
// user queue behind one another, so under a slow store some of them get
// this error instead of AlreadyPurchased. Both kinds are safe to retry; a
// retry after the first order commits returns AlreadyPurchased.
func (p *Pipeline) PlaceOrder(ctx context.Context, userID, promotionID int64) (Result, error) {
	if userID <= 0 {
		return Result{}, ErrInvalidUser
	}

	promo, err := p.promos.GetPromotion(ctx, promotionID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Outcome: PromotionNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("purchase: load promotion %d: %w", promotionID, err)
	}

	now := p.now()
	switch {
	case now.Before(promo.BeginAt):
		return Result{Outcome: NotStarted}, nil
	case now.After(promo.EndAt):
		return Result{Outcome: Ended}, nil
	case promo.Stock < 1:
		return Result{Outcome: OutOfStock}, nil
	}

	lockKey := util.Join(lockNamespace, strconv.FormatInt(userID, 10))
	wctx, cancel := context.WithTimeout(ctx, p.wait)
	lock, err := dlock.Acquire(wctx, p.locker, lockKey, p.lease, p.retry)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("purchase: lock user %d: %w", userID, err)
	}

	// past this point the purchase runs to completion even if the caller
	// goes away; the lock is released on every path
	detached := context.WithoutCancel(ctx)
	res, err := p.createOrder(detached, userID, promotionID)
	if rerr := p.locker.Release(detached, lock); rerr != nil {
		p.log.Warn("purchase lock release failed", flashguard.Fields{
			"user_id": userID, "lock_key": lock.Key, "err": rerr,
		})
		if err != nil {
			err = errors.Join(err, rerr)
		}
	}
	return res, err
}

func (p *Pipeline) createOrder(ctx context.Context, userID, promotionID int64) (Result, error) {
	var res Result
	err := p.db.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		n, err := tx.CountOrders(ctx, userID, promotionID)
		if err != nil {
			return err
		}
		if n > 0 {
			res = Result{Outcome: AlreadyPurchased}
			return nil
		}

		affected, err := tx.DecrementStock(ctx, promotionID)
		if err != nil {
			return err
		}
		if affected == 0 {
			res = Result{Outcome: OutOfStock}
			return nil
		}

		id, err := p.ids.Next(ctx, p.idNS)
		if err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, store.Order{
			ID:          id,
			UserID:      userID,
			PromotionID: promotionID,
			CreatedAt:   p.now(),
		}); err != nil {
			return err
		}
		res = Result{Outcome: Ordered, OrderID: id}
		return nil
	})

	switch {
	case errors.Is(err, store.ErrDuplicateOrder):
		// another instance without a shared locker got there first; the
		// constraint rolled our decrement back
		p.log.Warn("duplicate order rejected by store", flashguard.Fields{
			"user_id": userID, "promotion_id": promotionID,
		})
		return Result{Outcome: AlreadyPurchased}, nil
	case err != nil:
		return Result{}, fmt.Errorf("purchase: order user %d promotion %d: %w", userID, promotionID, err)
	}

	if res.Outcome == Ordered {
		p.log.Info("order placed", flashguard.Fields{
			"user_id": userID, "promotion_id": promotionID, "order_id": res.OrderID,
		})
	}
	return res, nil
}
