package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/flashguard/config"
	"github.com/unkn0wn-root/flashguard/counter"
	"github.com/unkn0wn-root/flashguard/dlock"
	"github.com/unkn0wn-root/flashguard/provider"
	bcprov "github.com/unkn0wn-root/flashguard/provider/bigcache"
	redisprov "github.com/unkn0wn-root/flashguard/provider/redis"
	rprov "github.com/unkn0wn-root/flashguard/provider/ristretto"
)

// sequenceTTL keeps yesterday's id counters around for late readers.
const sequenceTTL = 48 * time.Hour

// backend is the external cache side: entries, locks and id counters.
type backend struct {
	provider provider.Provider
	locker   dlock.Locker
	counter  counter.Counter
	rdb      *goredis.Client
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		// one client shared by all three; only backend.close closes it
		p, err := redisprov.New(redisprov.Config{Client: rdb})
		if err != nil {
			return nil, err
		}
		l, err := dlock.NewRedis(dlock.RedisConfig{Client: rdb})
		if err != nil {
			return nil, err
		}
		c, err := counter.NewRedis(counter.RedisConfig{Client: rdb, TTL: sequenceTTL})
		if err != nil {
			return nil, err
		}
		return &backend{provider: p, locker: l, counter: c, rdb: rdb}, nil

	case config.CacheRistretto, config.CacheBigcache:
		var (
			p   provider.Provider
			err error
		)
		if cfg.CacheBackend == config.CacheRistretto {
			p, err = rprov.New(rprov.Config{
				NumCounters: 100_000,
				MaxCost:     64 << 20,
				BufferItems: 64,
				Sync:        true,
			})
		} else {
			// one global life window; logical entries expire with it
			p, err = bcprov.New(ctx, bcprov.Config{
				LifeWindow:  cfg.CacheTTL,
				CleanWindow: time.Minute,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("%s provider: %w", cfg.CacheBackend, err)
		}
		return &backend{
			provider: p,
			locker:   dlock.NewLocal(dlock.LocalOptions{CleanupInterval: time.Minute}),
			counter:  counter.NewLocal(time.Hour, sequenceTTL),
		}, nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func (b *backend) close(ctx context.Context) error {
	var errs []error
	if b.provider != nil {
		errs = append(errs, b.provider.Close(ctx))
	}
	errs = append(errs, b.locker.Close(ctx), b.counter.Close(ctx))
	if b.rdb != nil {
		errs = append(errs, b.rdb.Close())
	}
	return errors.Join(errs...)
}
