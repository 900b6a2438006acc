// Package provider defines the shared byte store the shield caches entities in.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// bytes previously passed to Set. They MUST also preserve the difference
// between an absent key and a key holding an empty value, because the shield
// stores the null marker (penetration defense) as a zero-length value.
//
// The keyspace "cache:<ns>:" is owned by flashguard; lock and sequence keys
// live under their own prefixes and are written through dlock and counter.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit, including an empty value;
	// (nil, false, nil) on miss; (nil, false, err) on IO/remote failure.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry. cost may be ignored.
	// ok=false reports that the store refused the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort, missing keys are not an error).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
