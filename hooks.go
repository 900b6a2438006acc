package flashguard

// Hooks lightweight callbacks for high-signal shield events.
// Implementations MUST be cheap and non-blocking.
// The shield calls them on hot paths.
type Hooks interface {
	// An entry was deleted on read because it could not be decoded.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A null marker answered a lookup without touching the store.
	NullHit(storageKey string)

	// A rebuild lock was held elsewhere.
	LockContended(lockKey string)

	// A logically expired entry was returned while a rebuild ran (or could not).
	StaleServed(storageKey string)

	// Background rebuild queue was full; the entry stays stale until the next read.
	RebuildRejected(storageKey string)

	// Background rebuild failed (loader, codec or provider error).
	RebuildFailed(storageKey string, err error)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// Releasing a rebuild lock failed, including dlock.ErrNotHeld after the
	// lease ran out mid-rebuild.
	LockReleaseError(lockKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)        {}
func (NopHooks) NullHit(string)                 {}
func (NopHooks) LockContended(string)           {}
func (NopHooks) StaleServed(string)             {}
func (NopHooks) RebuildRejected(string)         {}
func (NopHooks) RebuildFailed(string, error)    {}
func (NopHooks) ProviderSetRejected(string)     {}
func (NopHooks) LockReleaseError(string, error) {}
