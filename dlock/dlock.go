// Package dlock provides named, leased mutual exclusion shared across
// process instances.
//
// TryLock never blocks. A lease is the only deadlock guarantee: a holder that
// crashes without releasing loses the lock after lease elapses.
//
// Release is a compare-and-delete on the token handed out by TryLock, so a
// holder whose lease already expired cannot drop a lock that someone else has
// since acquired; it gets ErrNotHeld instead. ForceRelease deletes the key
// unconditionally and carries the old risk of releasing another holder's lock.
//
//	lock, ok, err := locker.TryLock(ctx, "shop:42", 10*time.Second)
//	if err != nil || !ok {
//	    return // retry later or fall back
//	}
//	defer locker.Release(context.WithoutCancel(ctx), lock)
package dlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const DefaultPrefix = "lock:"

var (
	// ErrNotHeld is returned by Release when the lock's token no longer owns
	// the key: the lease expired and the key is gone or re-acquired.
	ErrNotHeld = errors.New("dlock: lock not held")

	// ErrNotAcquired is returned by Acquire when the lock stayed contended
	// until ctx was done.
	ErrNotAcquired = errors.New("dlock: lock not acquired")

	ErrInvalidLease = errors.New("dlock: lease must be positive")
	ErrEmptyKey     = errors.New("dlock: empty key")
)

// Lock is a held lease. Key includes the locker prefix.
type Lock struct {
	Key        string
	Token      string
	Lease      time.Duration
	AcquiredAt time.Time
}

// Expired reports whether the lease has run out at now. It is advisory: the
// backend is the authority.
func (l *Lock) Expired(now time.Time) bool {
	return !now.Before(l.AcquiredAt.Add(l.Lease))
}

// Locker is safe for concurrent use.
type Locker interface {
	// TryLock creates key with a fresh token only if absent. ok=false means
	// another holder has it; err is reserved for backend failures.
	TryLock(ctx context.Context, key string, lease time.Duration) (lock *Lock, ok bool, err error)
	// Release deletes the lock iff it still carries lock.Token.
	Release(ctx context.Context, lock *Lock) error
	// ForceRelease deletes key regardless of holder. Missing keys are not an error.
	ForceRelease(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

// Acquire polls TryLock every retryEvery until the lock is taken or ctx is
// done. Bound the wait with a ctx deadline.
func Acquire(ctx context.Context, l Locker, key string, lease, retryEvery time.Duration) (*Lock, error) {
	if retryEvery <= 0 {
		retryEvery = 20 * time.Millisecond
	}
	for attempt := 1; ; attempt++ {
		lock, ok, err := l.TryLock(ctx, key, lease)
		if err != nil {
			return nil, err
		}
		if ok {
			return lock, nil
		}

		t := time.NewTimer(retryEvery)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrNotAcquired, key, attempt, ctx.Err())
		case <-t.C:
		}
	}
}

func validate(key string, lease time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if lease <= 0 {
		return ErrInvalidLease
	}
	return nil
}

func newToken() string { return uuid.NewString() }
