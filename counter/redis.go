package counter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNilClient = errors.New("counter: nil redis client")

// Redis shares counters across processes and survives restarts.
// Optionally, a TTL is applied to each key so finished days age out; it must
// be longer than a day or a live day's counter could restart at 1.
type Redis struct {
	rdb         redis.UniversalClient
	ttl         time.Duration
	closeClient bool
}

var _ Counter = (*Redis)(nil)

type RedisConfig struct {
	Client redis.UniversalClient
	// TTL refreshed on every Incr; 0 disables expiry.
	TTL time.Duration
	// CloseClient hands ownership of Client to the counter.
	CloseClient bool
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, ttl: cfg.TTL, closeClient: cfg.CloseClient}, nil
}

// Incr runs INCR. When ttl > 0, INCR + EXPIRE are pipelined in a single
// round-trip and the INCR result is captured from the pipeline.
func (s *Redis) Incr(ctx context.Context, k string) (uint64, error) {
	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is not applicable for Redis (expiry is handled by TTL).
func (s *Redis) Cleanup(time.Duration) {}

func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
	}
	return nil
}
