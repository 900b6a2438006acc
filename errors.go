package flashguard

import (
	"errors"
	"fmt"
)

var (
	// ErrLockUnavailable: the rebuild lock stayed contended for every retry.
	// Transient; the caller may retry.
	ErrLockUnavailable = errors.New("flashguard: rebuild lock unavailable")
	// ErrEmptyEncoding: the codec produced zero bytes for a present value,
	// which would read back as the null marker.
	ErrEmptyEncoding = errors.New("flashguard: codec produced empty payload")
	// ErrClosed is returned by every Shield method after Close.
	ErrClosed = errors.New("flashguard: shield closed")
	// ErrEmptyID: ids are the last key segment and must not be empty.
	ErrEmptyID = errors.New("flashguard: empty id")
)

// StoreError reports an infrastructure fault from the cache, the lock
// backend or the loader. Locks taken on the failing path are still released;
// a failed release is attached as ReleaseErr.
type StoreError struct {
	Op         string // "cache_get", "cache_set", "cache_del", "lock", "load"
	Key        string
	Err        error
	ReleaseErr error
}

func (e *StoreError) Error() string {
	switch {
	case e.Err != nil && e.ReleaseErr != nil:
		return fmt.Sprintf("flashguard: %s %q: %v; lock release: %v", e.Op, e.Key, e.Err, e.ReleaseErr)
	case e.Err != nil:
		return fmt.Sprintf("flashguard: %s %q: %v", e.Op, e.Key, e.Err)
	case e.ReleaseErr != nil:
		return fmt.Sprintf("flashguard: %s %q: lock release: %v", e.Op, e.Key, e.ReleaseErr)
	default:
		return fmt.Sprintf("flashguard: %s %q: unknown error", e.Op, e.Key)
	}
}

func (e *StoreError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.ReleaseErr != nil {
		errs = append(errs, e.ReleaseErr)
	}
	return errs
}

type UnknownStrategyError struct{ Name string }

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("flashguard: unknown strategy %q", e.Name)
}
