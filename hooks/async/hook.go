// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/flashguard"
//	"github.com/unkn0wn-root/flashguard/codec"
//	asynchook "github.com/unkn0wn-root/flashguard/hooks/async"
//	"github.com/unkn0wn-root/flashguard/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    StaleEvery:    100, // sample logs: ~every 100th stale read
//	    NullHitEvery:  1000,
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	shops, _ := flashguard.New[Shop](flashguard.Options[Shop]{
//	    Namespace: "shop",
//	    Provider:  provider,
//	    Codec:     codec.Msgpack[Shop]{},
//	    Loader:    loadShop,
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/flashguard"
)

// Hooks forwards events to inner on background workers. Events are dropped,
// not queued, when the buffer is full so the read path never blocks.
type Hooks struct {
	inner   flashguard.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ flashguard.Hooks = (*Hooks)(nil)

func New(inner flashguard.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close flushes queued events. Events fired after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) SelfHeal(k, r string)     { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) NullHit(k string)         { h.try(func() { h.inner.NullHit(k) }) }
func (h *Hooks) LockContended(k string)   { h.try(func() { h.inner.LockContended(k) }) }
func (h *Hooks) StaleServed(k string)     { h.try(func() { h.inner.StaleServed(k) }) }
func (h *Hooks) RebuildRejected(k string) { h.try(func() { h.inner.RebuildRejected(k) }) }
func (h *Hooks) ProviderSetRejected(k string) {
	h.try(func() { h.inner.ProviderSetRejected(k) })
}
func (h *Hooks) RebuildFailed(k string, err error) {
	h.try(func() { h.inner.RebuildFailed(k, err) })
}
func (h *Hooks) LockReleaseError(k string, err error) {
	h.try(func() { h.inner.LockReleaseError(k, err) })
}
