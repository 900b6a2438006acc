package flashguard

import "time"

const (
	defaultTTL            = 30 * time.Minute
	defaultNullTTL        = 2 * time.Minute
	defaultLockLease      = 10 * time.Second
	defaultRetryDelay     = 50 * time.Millisecond
	defaultMaxRetries     = 100
	defaultLogicalTTL     = 20 * time.Second
	defaultRebuildWorkers = 10
	defaultRebuildQueue   = 1024
	defaultRebuildTimeout = 5 * time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
