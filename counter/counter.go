// Package counter holds the sequence counters behind the id generator.
//
// A counter is keyed externally (the generator folds namespace and calendar
// day into the key) and only ever increases. There is no reset: a new day is
// a new key. Use Local for a single process and Redis when several instances
// hand out ids from the same namespace.
package counter

import (
	"context"
	"time"
)

type Counter interface {
	// Incr atomically increments key and returns the new value; the first
	// call for a key returns 1.
	Incr(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes keys idle for longer than retention (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
