package dlock

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// compare-and-delete: only the token holder may release.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrNilClient = errors.New("dlock: nil redis client")

// Redis implements Locker with SET NX PX on a shared client.
type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	closeClient bool
	now         func() time.Time
}

var _ Locker = (*Redis)(nil)

type RedisConfig struct {
	Client goredis.UniversalClient
	Prefix string // "" => DefaultPrefix
	// CloseClient hands ownership of Client to the locker.
	CloseClient bool
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{rdb: cfg.Client, prefix: prefix, closeClient: cfg.CloseClient, now: time.Now}, nil
}

func (r *Redis) TryLock(ctx context.Context, key string, lease time.Duration) (*Lock, bool, error) {
	if err := validate(key, lease); err != nil {
		return nil, false, err
	}
	k := r.prefix + key
	token := newToken()
	now := r.now()
	ok, err := r.rdb.SetNX(ctx, k, token, lease).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lock{Key: k, Token: token, Lease: lease, AcquiredAt: now}, true, nil
}

func (r *Redis) Release(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return ErrNotHeld
	}
	n, err := releaseScript.Run(ctx, r.rdb, []string{lock.Key}, lock.Token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (r *Redis) ForceRelease(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return r.rdb.Del(ctx, r.prefix+key).Err()
}

func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
