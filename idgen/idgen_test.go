package idgen

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/flashguard/counter"
)

type stepClock struct{ nanos atomic.Int64 }

func newStepClock(t time.Time) *stepClock {
	c := &stepClock{}
	c.nanos.Store(t.UnixNano())
	return c
}

func (c *stepClock) Now() time.Time          { return time.Unix(0, c.nanos.Load()).UTC() }
func (c *stepClock) Advance(d time.Duration) { c.nanos.Add(int64(d)) }

type failingCounter struct{ err error }

func (f failingCounter) Incr(context.Context, string) (uint64, error) { return 0, f.err }
func (failingCounter) Cleanup(time.Duration)                         {}
func (failingCounter) Close(context.Context) error                   { return nil }

type fixedCounter struct{ v uint64 }

func (f fixedCounter) Incr(context.Context, string) (uint64, error) { return f.v, nil }
func (fixedCounter) Cleanup(time.Duration)                         {}
func (fixedCounter) Close(context.Context) error                   { return nil }

func newTestGenerator(t *testing.T, clk *stepClock) (*Generator, *counter.Local) {
	t.Helper()
	c := counter.NewLocal(0, 0)
	g, err := New(c, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, c
}

func TestNextComposesTimestampAndSequence(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clk := newStepClock(at)
	g, c := newTestGenerator(t, clk)

	id, err := g.Next(ctx, "order")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	ts, seq := Decode(id)
	if !ts.Equal(at) || seq != 1 {
		t.Fatalf("Decode: ts=%v seq=%d want %v/1", ts, seq, at)
	}
	if id>>63 != 0 {
		t.Fatalf("top bit must be zero, id=%x", id)
	}
	if c.Peek("icr:order:2024:05:01") != 1 {
		t.Fatalf("counter key not keyed by namespace and day")
	}
}

func TestNextDistinctWithinDay(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGenerator(t, newStepClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	const k = 1000
	seen := make(map[uint64]struct{}, k)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < k/10; j++ {
				id, err := g.Next(ctx, "order")
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != k {
		t.Fatalf("want %d distinct ids, got %d", k, len(seen))
	}
}

func TestNextMonotonicAcrossSeconds(t *testing.T) {
	ctx := context.Background()
	clk := newStepClock(time.Date(2024, 5, 1, 23, 59, 58, 0, time.UTC))
	g, _ := newTestGenerator(t, clk)

	var prev uint64
	for i := 0; i < 5; i++ {
		id, err := g.Next(ctx, "order")
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if id <= prev {
			t.Fatalf("ids not increasing: %d after %d", id, prev)
		}
		prev = id
		clk.Advance(time.Second) // crosses midnight: sequence restarts, timestamp dominates
	}
}

func TestNextNamespacesAreIndependent(t *testing.T) {
	ctx := context.Background()
	g, _ := newTestGenerator(t, newStepClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	a, _ := g.Next(ctx, "order")
	b, _ := g.Next(ctx, "refund")
	if _, sa := Decode(a); sa != 1 {
		t.Fatalf("order seq=%d", sa)
	}
	if _, sb := Decode(b); sb != 1 {
		t.Fatalf("refund seq=%d", sb)
	}
}

func TestNextErrors(t *testing.T) {
	ctx := context.Background()
	now := newStepClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))

	g, _ := newTestGenerator(t, now)
	if _, err := g.Next(ctx, ""); !errors.Is(err, ErrEmptyNamespace) {
		t.Fatalf("want ErrEmptyNamespace, got %v", err)
	}

	early, _ := newTestGenerator(t, newStepClock(time.Date(2021, 12, 31, 0, 0, 0, 0, time.UTC)))
	if _, err := early.Next(ctx, "order"); !errors.Is(err, ErrClockBeforeEpoch) {
		t.Fatalf("want ErrClockBeforeEpoch, got %v", err)
	}

	boom := errors.New("connection refused")
	down, _ := New(failingCounter{err: boom}, WithClock(now.Now))
	if _, err := down.Next(ctx, "order"); !errors.Is(err, boom) {
		t.Fatalf("counter error should propagate, got %v", err)
	}

	full, _ := New(fixedCounter{v: 1 << 32}, WithClock(now.Now))
	if _, err := full.Next(ctx, "order"); !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("want ErrSequenceExhausted, got %v", err)
	}

	if _, err := New(nil); err == nil {
		t.Fatalf("New(nil) should fail")
	}
}

func TestSequenceKeyUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	at := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	if got := SequenceKey("order", at); got != "icr:order:2024:05:01" {
		t.Fatalf("utc key=%q", got)
	}
	if got := SequenceKey("order", at.In(tokyo)); got != "icr:order:2024:05:02" {
		t.Fatalf("jst key=%q", got)
	}
}
