package dlock

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	token string
	exp   time.Time
}

// Local is an in-process Locker. It only serializes callers inside one
// process; use Redis when more than one instance serves traffic.
// An optional cleanup loop prunes expired leases nobody released.
type Local struct {
	mu     sync.Mutex
	locks  map[string]localEntry
	prefix string
	now    func() time.Time

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Locker = (*Local)(nil)

type LocalOptions struct {
	Prefix          string           // "" => DefaultPrefix
	CleanupInterval time.Duration    // 0 => no background cleanup
	Clock           func() time.Time // nil => time.Now
}

func NewLocal(opts LocalOptions) *Local {
	l := &Local{
		locks:  make(map[string]localEntry),
		prefix: opts.Prefix,
		now:    opts.Clock,
	}
	if l.prefix == "" {
		l.prefix = DefaultPrefix
	}
	if l.now == nil {
		l.now = time.Now
	}
	if opts.CleanupInterval > 0 {
		l.ticker = time.NewTicker(opts.CleanupInterval)
		l.stopCh = make(chan struct{})
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			for {
				select {
				case <-l.ticker.C:
					l.Cleanup()
				case <-l.stopCh:
					return
				}
			}
		}()
	}
	return l
}

func (l *Local) TryLock(_ context.Context, key string, lease time.Duration) (*Lock, bool, error) {
	if err := validate(key, lease); err != nil {
		return nil, false, err
	}
	k := l.prefix + key
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.locks[k]; ok && now.Before(e.exp) {
		return nil, false, nil
	}
	token := newToken()
	l.locks[k] = localEntry{token: token, exp: now.Add(lease)}
	return &Lock{Key: k, Token: token, Lease: lease, AcquiredAt: now}, true, nil
}

func (l *Local) Release(_ context.Context, lock *Lock) error {
	if lock == nil {
		return ErrNotHeld
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[lock.Key]
	if !ok || e.token != lock.Token {
		return ErrNotHeld
	}
	delete(l.locks, lock.Key)
	// mirror redis: an expired key is already gone there
	if !now.Before(e.exp) {
		return ErrNotHeld
	}
	return nil
}

func (l *Local) ForceRelease(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	l.mu.Lock()
	delete(l.locks, l.prefix+key)
	l.mu.Unlock()
	return nil
}

// Cleanup drops expired leases.
func (l *Local) Cleanup() {
	now := l.now()
	l.mu.Lock()
	for k, e := range l.locks {
		if !now.Before(e.exp) {
			delete(l.locks, k)
		}
	}
	l.mu.Unlock()
}

// Held returns the number of live leases.
func (l *Local) Held() int {
	now := l.now()
	n := 0
	l.mu.Lock()
	for _, e := range l.locks {
		if now.Before(e.exp) {
			n++
		}
	}
	l.mu.Unlock()
	return n
}

func (l *Local) Close(_ context.Context) error {
	l.once.Do(func() {
		if l.stopCh != nil {
			close(l.stopCh)
			l.ticker.Stop()
			l.wg.Wait()
		}
	})
	return nil
}
