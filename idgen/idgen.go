// Package idgen hands out 64-bit ids that are unique per namespace and
// roughly time ordered:
//
//	id = (seconds since Epoch) << 32 | sequence
//
// sequence comes from a counter keyed by namespace and calendar day, so it
// spans the whole day rather than one second. Ids within the same second are
// ordered by counter increments, not by request arrival across processes.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/unkn0wn-root/flashguard/counter"
	"github.com/unkn0wn-root/flashguard/internal/util"
)

const (
	// Epoch is 2022-01-01T00:00:00Z.
	Epoch int64 = 1640995200

	sequenceBits = 32
	dayLayout    = "2006:01:02"
	keyPrefix    = "icr"
)

var (
	ErrEmptyNamespace    = errors.New("idgen: empty namespace")
	ErrClockBeforeEpoch  = errors.New("idgen: clock before epoch")
	ErrSequenceExhausted = errors.New("idgen: daily sequence exhausted")
)

type Generator struct {
	c   counter.Counter
	now func() time.Time
	loc *time.Location
}

type Option func(*Generator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(g *Generator) { g.now = now } }

// WithLocation sets the zone that decides where a calendar day starts.
// Default UTC; every instance sharing a counter must agree.
func WithLocation(loc *time.Location) Option { return func(g *Generator) { g.loc = loc } }

func New(c counter.Counter, opts ...Option) (*Generator, error) {
	if c == nil {
		return nil, errors.New("idgen: counter is required")
	}
	g := &Generator{c: c, now: time.Now, loc: time.UTC}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Next returns a new id for namespace. It fails only when the counter store
// is unreachable or the day's sequence no longer fits in 32 bits.
func (g *Generator) Next(ctx context.Context, namespace string) (uint64, error) {
	if namespace == "" {
		return 0, ErrEmptyNamespace
	}
	now := g.now()
	ts := now.Unix() - Epoch
	if ts < 0 {
		return 0, ErrClockBeforeEpoch
	}

	seq, err := g.c.Incr(ctx, SequenceKey(namespace, now.In(g.loc)))
	if err != nil {
		return 0, fmt.Errorf("idgen: next %s: %w", namespace, err)
	}
	if seq > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s at %d", ErrSequenceExhausted, namespace, seq)
	}
	return uint64(ts)<<sequenceBits | seq, nil
}

// SequenceKey is the counter key for namespace on t's calendar day,
// e.g. "icr:order:2024:05:01".
func SequenceKey(namespace string, t time.Time) string {
	return util.Join(keyPrefix, namespace, t.Format(dayLayout))
}

// Decode splits an id into its timestamp and sequence.
func Decode(id uint64) (time.Time, uint32) {
	ts := int64(id >> sequenceBits)
	return time.Unix(Epoch+ts, 0).UTC(), uint32(id)
}
