package counter

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	n         uint64
	updatedAt time.Time
}

// Local keeps counters in-process. Counters are lost on restart, so ids
// from a restarted process can repeat ids it issued earlier the same day.
// Optional cleanup loop prunes yesterday's keys.
type Local struct {
	mu     sync.Mutex
	counts map[string]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Counter = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{counts: make(map[string]localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Incr(_ context.Context, k string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.counts[k]
	e.n++
	e.updatedAt = now
	s.counts[k] = e
	s.mu.Unlock()
	return e.n, nil
}

// Peek returns the current value without incrementing; missing => 0.
func (s *Local) Peek(k string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[k].n
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.counts {
		if e.updatedAt.Before(cutoff) {
			delete(s.counts, k)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop() // stop ticker before waiting
			s.wg.Wait()
		}
	})
	return nil
}
