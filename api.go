package flashguard

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/flashguard/codec"
	"github.com/unkn0wn-root/flashguard/dlock"
	pr "github.com/unkn0wn-root/flashguard/provider"
)

// LoaderFunc reads one entity from the relational store.
// found=false with a nil error means the row does not exist.
type LoaderFunc[V any] func(ctx context.Context, id string) (v V, found bool, err error)

type SetCostFunc func(key string, raw []byte) int64

// Strategy selects how a cache miss is turned into a store read.
type Strategy uint8

const (
	// StrategyMutex rebuilds a missing entry under a distributed lock so
	// only one caller hits the store. Default.
	StrategyMutex Strategy = iota
	// StrategyPassThrough reads the store on every miss and only defends
	// against penetration.
	StrategyPassThrough
	// StrategyLogical serves prewarmed entries forever and refreshes expired
	// ones in the background. Never reads the store on the caller's path.
	StrategyLogical
)

func (s Strategy) String() string {
	switch s {
	case StrategyMutex:
		return "mutex"
	case StrategyPassThrough:
		return "pass_through"
	case StrategyLogical:
		return "logical"
	default:
		return "unknown"
	}
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "mutex", "":
		return StrategyMutex, nil
	case "pass_through", "passthrough":
		return StrategyPassThrough, nil
	case "logical":
		return StrategyLogical, nil
	default:
		return 0, &UnknownStrategyError{Name: s}
	}
}

// Shield serves read-mostly entities through a shared cache while keeping
// penetration and breakdown traffic away from the store.
// A missing entity is (zero, false, nil); it is never an error.
type Shield[V any] interface {
	// Get uses Options.Strategy.
	Get(ctx context.Context, id string) (V, bool, error)
	GetWith(ctx context.Context, id string, s Strategy) (V, bool, error)

	GetPassThrough(ctx context.Context, id string) (V, bool, error)
	GetWithMutex(ctx context.Context, id string) (V, bool, error)
	GetWithLogicalExpire(ctx context.Context, id string) (V, bool, error)

	// Prewarm loads id from the store and writes it as a logically expiring
	// entry with no physical TTL.
	Prewarm(ctx context.Context, id string) (V, bool, error)
	// Invalidate drops the cached entry. Call it after the store write.
	Invalidate(ctx context.Context, id string) error

	// Close drains background rebuilds and closes the provider.
	Close(context.Context) error
}

// Options tune a Shield. Namespace, Provider, Codec and Loader are required;
// others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // e.g. "shop"; keys are cache:<ns>:<id>
	Provider  pr.Provider
	Codec     c.Codec[V]
	Loader    LoaderFunc[V]

	// Locker guards rebuilds. nil => in-process dlock.Local owned by the
	// shield, which only serializes rebuilds inside this process.
	Locker   dlock.Locker
	Strategy Strategy // default StrategyMutex

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	TTL        time.Duration // entity TTL; 0 => 30m
	NullTTL    time.Duration // null marker TTL; 0 => 2m
	LockLease  time.Duration // 0 => 10s
	RetryDelay time.Duration // mutex wait between attempts; 0 => 50ms
	MaxRetries int           // mutex attempts after the first; 0 => 100, <0 => unbounded
	LogicalTTL time.Duration // logical expiry after prewarm; 0 => 20s

	RebuildWorkers int           // 0 => 10
	RebuildQueue   int           // 0 => 1024
	RebuildTimeout time.Duration // per background rebuild; 0 => 5s

	ComputeSetCost SetCostFunc      // default 1
	Clock          func() time.Time // default time.Now
}

func New[V any](opts Options[V]) (Shield[V], error) {
	return newShield[V](opts)
}
