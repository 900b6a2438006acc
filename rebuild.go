package flashguard

import (
	"context"
	"sync"
)

// rebuildPool runs logical-expiration rebuilds on a fixed set of workers.
// submit never blocks: a full queue rejects the task.
type rebuildPool struct {
	mu     sync.RWMutex
	closed bool
	q      chan func()
	wg     sync.WaitGroup
	once   sync.Once
}

func newRebuildPool(workers, qlen int) *rebuildPool {
	p := &rebuildPool{q: make(chan func(), qlen)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for f := range p.q {
				f()
			}
		}()
	}
	return p
}

func (p *rebuildPool) submit(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.q <- f:
		return true
	default:
		return false
	}
}

// close stops accepting tasks and waits for queued ones until ctx is done.
func (p *rebuildPool) close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.q)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
