package flashguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	c "github.com/unkn0wn-root/flashguard/codec"
	"github.com/unkn0wn-root/flashguard/dlock"
	"github.com/unkn0wn-root/flashguard/internal/util"
	"github.com/unkn0wn-root/flashguard/internal/wire"
	pr "github.com/unkn0wn-root/flashguard/provider"
)

type lookup uint8

const (
	lookupMiss lookup = iota
	lookupHit
	lookupNull
)

// nullMarker is stored for ids the store does not have.
var nullMarker = []byte{}

type shield[V any] struct {
	ns         string
	provider   pr.Provider
	codec      c.Codec[V]
	loader     LoaderFunc[V]
	locker     dlock.Locker
	ownsLocker bool
	strategy   Strategy
	log        Logger
	hooks      Hooks
	now        func() time.Time

	ttl            time.Duration
	nullTTL        time.Duration
	lease          time.Duration
	retryDelay     time.Duration
	maxRetries     int // <0 => unbounded
	logicalTTL     time.Duration
	rebuildTimeout time.Duration
	computeSetCost SetCostFunc

	pool      *rebuildPool
	closed    atomic.Bool
	closeOnce sync.Once
}

func newShield[V any](opts Options[V]) (*shield[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("flashguard: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("flashguard: codec is required")
	}
	if opts.Loader == nil {
		return nil, fmt.Errorf("flashguard: loader is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("flashguard: namespace is required")
	}
	if opts.Strategy > StrategyLogical {
		return nil, &UnknownStrategyError{Name: opts.Strategy.String()}
	}

	s := &shield[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		loader:   opts.Loader,
		locker:   opts.Locker,
		strategy: opts.Strategy,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.ttl = coalesce(opts.TTL, defaultTTL)
	s.nullTTL = coalesce(opts.NullTTL, defaultNullTTL)
	s.lease = coalesce(opts.LockLease, defaultLockLease)
	s.retryDelay = coalesce(opts.RetryDelay, defaultRetryDelay)
	s.logicalTTL = coalesce(opts.LogicalTTL, defaultLogicalTTL)
	s.rebuildTimeout = coalesce(opts.RebuildTimeout, defaultRebuildTimeout)

	switch {
	case opts.MaxRetries < 0:
		s.maxRetries = -1
	case opts.MaxRetries == 0:
		s.maxRetries = defaultMaxRetries
	default:
		s.maxRetries = opts.MaxRetries
	}

	if opts.Clock != nil {
		s.now = opts.Clock
	} else {
		s.now = time.Now
	}

	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(string, []byte) int64 { return 1 }
	}

	if s.locker == nil {
		// single-process fallback; rebuilds are not serialized across instances
		s.locker = dlock.NewLocal(dlock.LocalOptions{CleanupInterval: time.Minute})
		s.ownsLocker = true
		s.log.Warn("no locker configured; using in-process locks", Fields{"ns": s.ns})
	}

	workers := opts.RebuildWorkers
	if workers <= 0 {
		workers = defaultRebuildWorkers
	}
	qlen := opts.RebuildQueue
	if qlen <= 0 {
		qlen = defaultRebuildQueue
	}
	s.pool = newRebuildPool(workers, qlen)

	return s, nil
}

func (s *shield[V]) Get(ctx context.Context, id string) (V, bool, error) {
	return s.GetWith(ctx, id, s.strategy)
}

func (s *shield[V]) GetWith(ctx context.Context, id string, st Strategy) (V, bool, error) {
	switch st {
	case StrategyMutex:
		return s.GetWithMutex(ctx, id)
	case StrategyPassThrough:
		return s.GetPassThrough(ctx, id)
	case StrategyLogical:
		return s.GetWithLogicalExpire(ctx, id)
	default:
		var zero V
		return zero, false, &UnknownStrategyError{Name: st.String()}
	}
}

func (s *shield[V]) GetPassThrough(ctx context.Context, id string) (V, bool, error) {
	if err := s.usable(id); err != nil {
		var zero V
		return zero, false, err
	}
	k := s.cacheKey(id)
	v, res, err := s.read(ctx, k)
	if err != nil || res != lookupMiss {
		return v, res == lookupHit, err
	}
	return s.load(ctx, id, k)
}

// GetWithMutex retries while another caller holds the rebuild lock, up to
// MaxRetries waits of RetryDelay or until ctx is done.
func (s *shield[V]) GetWithMutex(ctx context.Context, id string) (V, bool, error) {
	var zero V
	if err := s.usable(id); err != nil {
		return zero, false, err
	}
	k := s.cacheKey(id)
	lk := s.lockKey(id)

	for attempt := 0; ; attempt++ {
		v, res, err := s.read(ctx, k)
		if err != nil || res != lookupMiss {
			return v, res == lookupHit, err
		}

		lock, ok, err := s.locker.TryLock(ctx, lk, s.lease)
		if err != nil {
			return zero, false, &StoreError{Op: "lock", Key: lk, Err: err}
		}
		if ok {
			return s.rebuildLocked(ctx, id, k, lock)
		}

		s.hooks.LockContended(lk)
		if s.maxRetries >= 0 && attempt >= s.maxRetries {
			return zero, false, fmt.Errorf("%w: %s after %d attempts", ErrLockUnavailable, lk, attempt+1)
		}
		if err := sleepCtx(ctx, s.retryDelay); err != nil {
			return zero, false, err
		}
	}
}

func (s *shield[V]) rebuildLocked(ctx context.Context, id, k string, lock *dlock.Lock) (v V, found bool, err error) {
	defer func() {
		if rerr := s.release(ctx, lock); rerr != nil {
			var se *StoreError
			if errors.As(err, &se) && se.ReleaseErr == nil {
				se.ReleaseErr = rerr
			}
		}
	}()

	// another holder may have rebuilt it while we waited
	v, res, err := s.read(ctx, k)
	if err != nil || res != lookupMiss {
		return v, res == lookupHit, err
	}
	return s.load(ctx, id, k)
}

// GetWithLogicalExpire never reads the store. A key that was never prewarmed
// is Missing; a prewarmed key always returns data, stale or not.
func (s *shield[V]) GetWithLogicalExpire(ctx context.Context, id string) (V, bool, error) {
	var zero V
	if err := s.usable(id); err != nil {
		return zero, false, err
	}
	k := s.cacheKey(id)
	v, exp, res, err := s.readLogical(ctx, k)
	if err != nil || res != lookupHit {
		return zero, false, err
	}
	if s.now().Before(exp) {
		return v, true, nil
	}

	lk := s.lockKey(id)
	lock, ok, err := s.locker.TryLock(ctx, lk, s.lease)
	if err != nil {
		s.log.Warn("rebuild lock failed; serving stale", Fields{"key": lk, "err": err})
		s.hooks.StaleServed(k)
		return v, true, nil
	}
	if !ok {
		s.hooks.LockContended(lk)
		s.hooks.StaleServed(k)
		return v, true, nil
	}

	if fv, fexp, fres, ferr := s.readLogical(ctx, k); ferr == nil && fres == lookupHit && s.now().Before(fexp) {
		_ = s.release(ctx, lock)
		return fv, true, nil
	}

	if !s.pool.submit(func() { s.rebuildLogical(id, k, lock) }) {
		s.hooks.RebuildRejected(k)
		s.log.Warn("rebuild rejected; queue full or closed", Fields{"key": k})
		_ = s.release(ctx, lock)
	}
	s.hooks.StaleServed(k)
	return v, true, nil
}

func (s *shield[V]) rebuildLogical(id, k string, lock *dlock.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), s.rebuildTimeout)
	defer cancel()
	defer func() { _ = s.release(ctx, lock) }()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("flashguard: rebuild panic: %v", r)
			s.hooks.RebuildFailed(k, err)
			s.log.Error("logical rebuild panicked", Fields{"key": k, "err": err})
		}
	}()

	if _, _, err := s.prewarm(ctx, id, k); err != nil {
		s.hooks.RebuildFailed(k, err)
		s.log.Error("logical rebuild failed", Fields{"key": k, "err": err})
		return
	}
	s.log.Debug("logical rebuild done", Fields{"key": k})
}

func (s *shield[V]) Prewarm(ctx context.Context, id string) (V, bool, error) {
	if err := s.usable(id); err != nil {
		var zero V
		return zero, false, err
	}
	return s.prewarm(ctx, id, s.cacheKey(id))
}

// prewarm writes a logical frame without physical TTL. An id the store does
// not have gets a short-lived null marker instead.
func (s *shield[V]) prewarm(ctx context.Context, id, k string) (V, bool, error) {
	var zero V
	v, found, err := s.loader(ctx, id)
	if err != nil {
		return zero, false, &StoreError{Op: "load", Key: k, Err: err}
	}
	if !found {
		if err := s.put(ctx, k, nullMarker, s.nullTTL); err != nil {
			return zero, false, err
		}
		return zero, false, nil
	}
	payload, err := s.encode(k, v)
	if err != nil {
		return zero, false, err
	}
	if err := s.put(ctx, k, wire.EncodeLogical(s.now().Add(s.logicalTTL), payload), 0); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (s *shield[V]) Invalidate(ctx context.Context, id string) error {
	if err := s.usable(id); err != nil {
		return err
	}
	k := s.cacheKey(id)
	if err := s.provider.Del(ctx, k); err != nil {
		return &StoreError{Op: "cache_del", Key: k, Err: err}
	}
	s.log.Debug("invalidated", Fields{"key": k})
	return nil
}

func (s *shield[V]) Close(ctx context.Context) error {
	var errs []error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if err := s.pool.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flashguard: drain rebuilds: %w", err))
		}
		if s.ownsLocker {
			errs = append(errs, s.locker.Close(ctx))
		}
		errs = append(errs, s.provider.Close(ctx))
	})
	return errors.Join(errs...)
}

// read serves the pass-through and mutex strategies. A logical frame is
// accepted as a hit regardless of its expiry.
func (s *shield[V]) read(ctx context.Context, k string) (V, lookup, error) {
	v, _, res, err := s.readEntry(ctx, k)
	return v, res, err
}

// readLogical returns the entry and its logical expiry. A plain entry
// (written by another strategy) has no logical expiry and counts as fresh
// until its physical TTL removes it.
func (s *shield[V]) readLogical(ctx context.Context, k string) (V, time.Time, lookup, error) {
	v, e, res, err := s.readEntry(ctx, k)
	if res != lookupHit {
		return v, time.Time{}, res, err
	}
	if e.Kind == wire.KindPlain {
		return v, s.now().Add(s.logicalTTL), lookupHit, nil
	}
	return v, e.Expiry, lookupHit, nil
}

// readEntry fetches and unframes k. Entries that do not parse as a frame or
// whose payload the codec rejects are deleted and reported as a miss.
func (s *shield[V]) readEntry(ctx context.Context, k string) (V, wire.Entry, lookup, error) {
	var zero V
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil {
		return zero, wire.Entry{}, lookupMiss, &StoreError{Op: "cache_get", Key: k, Err: err}
	}
	if !ok {
		return zero, wire.Entry{}, lookupMiss, nil
	}
	if len(raw) == 0 {
		s.hooks.NullHit(k)
		return zero, wire.Entry{}, lookupNull, nil
	}

	e, err := wire.Decode(raw)
	if err != nil {
		s.selfHeal(ctx, k, "corrupt")
		return zero, wire.Entry{}, lookupMiss, nil
	}
	v, err := s.codec.Decode(e.Payload)
	if err != nil {
		s.selfHeal(ctx, k, "value_decode")
		return zero, wire.Entry{}, lookupMiss, nil
	}
	return v, e, lookupHit, nil
}

// load queries the store and populates the cache with the entity or a null
// marker. A failed cache write is logged; the caller still gets the entity.
func (s *shield[V]) load(ctx context.Context, id, k string) (V, bool, error) {
	var zero V
	v, found, err := s.loader(ctx, id)
	if err != nil {
		return zero, false, &StoreError{Op: "load", Key: k, Err: err}
	}
	if !found {
		if err := s.put(ctx, k, nullMarker, s.nullTTL); err != nil {
			s.log.Warn("null marker write failed", Fields{"key": k, "err": err})
		}
		return zero, false, nil
	}
	payload, err := s.encode(k, v)
	if err != nil {
		return zero, false, err
	}
	if err := s.put(ctx, k, wire.EncodePlain(payload), s.ttl); err != nil {
		s.log.Warn("cache populate failed", Fields{"key": k, "err": err})
	}
	return v, true, nil
}

func (s *shield[V]) encode(k string, v V) ([]byte, error) {
	payload, err := s.codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("flashguard: encode %q: %w", k, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyEncoding, k)
	}
	return payload, nil
}

func (s *shield[V]) put(ctx context.Context, k string, raw []byte, ttl time.Duration) error {
	ok, err := s.provider.Set(ctx, k, raw, s.computeSetCost(k, raw), ttl)
	if err != nil {
		return &StoreError{Op: "cache_set", Key: k, Err: err}
	}
	if !ok {
		s.hooks.ProviderSetRejected(k)
		s.log.Debug("Set rejected by provider (pressure)", Fields{"key": k})
	}
	return nil
}

// release runs on every exit path, so it must survive a canceled ctx.
func (s *shield[V]) release(ctx context.Context, lock *dlock.Lock) error {
	err := s.locker.Release(context.WithoutCancel(ctx), lock)
	if err != nil {
		s.hooks.LockReleaseError(lock.Key, err)
		s.log.Warn("lock release failed", Fields{"key": lock.Key, "err": err})
	}
	return err
}

func (s *shield[V]) selfHeal(ctx context.Context, k, reason string) {
	if err := s.provider.Del(ctx, k); err != nil {
		s.log.Warn("self-heal delete failed", Fields{"key": k, "err": err})
	}
	s.hooks.SelfHeal(k, reason)
}

// usable rejects calls after Close and empty ids, which would otherwise
// collapse into the namespace key itself.
func (s *shield[V]) usable(id string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if id == "" {
		return ErrEmptyID
	}
	return nil
}

func (s *shield[V]) cacheKey(id string) string { return util.CacheKey(s.ns, id) }
func (s *shield[V]) lockKey(id string) string  { return util.LockKey(s.ns, id) }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
