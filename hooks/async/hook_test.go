package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/flashguard"
)

type countingHooks struct {
	flashguard.NopHooks
	mu    sync.Mutex
	stale int
	block chan struct{}
}

func (c *countingHooks) StaleServed(string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.stale++
	c.mu.Unlock()
}

func TestAsyncDeliversAndFlushesOnClose(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 64)
	for i := 0; i < 50; i++ {
		h.StaleServed("cache:shop:1")
	}
	h.Close()

	if inner.stale != 50 || h.Dropped() != 0 {
		t.Fatalf("delivered=%d dropped=%d", inner.stale, h.Dropped())
	}

	h.StaleServed("after-close")
	if h.Dropped() != 1 {
		t.Fatalf("event after Close should be dropped")
	}
}

func TestAsyncDropsWhenFull(t *testing.T) {
	inner := &countingHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event parks the worker, one fills the queue, the rest drop
	for i := 0; i < 10; i++ {
		h.StaleServed("k")
	}
	close(inner.block)
	h.Close()

	if h.Dropped() == 0 || inner.stale+int(h.Dropped()) != 10 {
		t.Fatalf("delivered=%d dropped=%d", inner.stale, h.Dropped())
	}
}
