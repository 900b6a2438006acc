// Package config loads the demo command's settings from FLASHGUARD_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/unkn0wn-root/flashguard"
)

const (
	CacheRedis     = "redis"
	CacheRistretto = "ristretto"
	CacheBigcache  = "bigcache"

	LogZap    = "zap"
	LogLogrus = "logrus"
	LogSlog   = "slog"
)

type Config struct {
	// Cache backend. "redis" shares entries, locks and id counters across
	// instances; the in-process backends pair with dlock.Local and
	// counter.Local.
	CacheBackend  string `env:"FLASHGUARD_CACHE_BACKEND" envDefault:"redis"`
	RedisAddr     string `env:"FLASHGUARD_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"FLASHGUARD_REDIS_PASSWORD"`
	RedisDB       int    `env:"FLASHGUARD_REDIS_DB" envDefault:"0"`

	DBDriver   string `env:"FLASHGUARD_DB_DRIVER" envDefault:"sqlite"`
	DBDSN      string `env:"FLASHGUARD_DB_DSN" envDefault:"flashguard.db"`
	DBMaxConns int    `env:"FLASHGUARD_DB_MAX_CONNS" envDefault:"10"`

	Strategy       string        `env:"FLASHGUARD_STRATEGY" envDefault:"mutex"`
	CacheTTL       time.Duration `env:"FLASHGUARD_CACHE_TTL" envDefault:"30m"`
	NullTTL        time.Duration `env:"FLASHGUARD_NULL_TTL" envDefault:"2m"`
	LogicalTTL     time.Duration `env:"FLASHGUARD_LOGICAL_TTL" envDefault:"20s"`
	LockLease      time.Duration `env:"FLASHGUARD_LOCK_LEASE" envDefault:"10s"`
	LockWait       time.Duration `env:"FLASHGUARD_LOCK_WAIT" envDefault:"2s"`
	RebuildWorkers int           `env:"FLASHGUARD_REBUILD_WORKERS" envDefault:"10"`

	LogLevel   string `env:"FLASHGUARD_LOG_LEVEL" envDefault:"info"`
	LogBackend string `env:"FLASHGUARD_LOG_BACKEND" envDefault:"zap"`

	// Flash sale simulation.
	SimUsers    int           `env:"FLASHGUARD_SIM_USERS" envDefault:"200"`
	SimAttempts int           `env:"FLASHGUARD_SIM_ATTEMPTS" envDefault:"3"`
	SimStock    int64         `env:"FLASHGUARD_SIM_STOCK" envDefault:"50"`
	SimWindow   time.Duration `env:"FLASHGUARD_SIM_WINDOW" envDefault:"1h"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))
	cfg.LogBackend = strings.ToLower(strings.TrimSpace(cfg.LogBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.CacheBackend {
	case CacheRedis, CacheRistretto, CacheBigcache:
	default:
		errs = append(errs, fmt.Errorf("unknown cache backend %q", c.CacheBackend))
	}
	switch c.LogBackend {
	case LogZap, LogLogrus, LogSlog:
	default:
		errs = append(errs, fmt.Errorf("unknown log backend %q", c.LogBackend))
	}
	if _, err := flashguard.ParseStrategy(c.Strategy); err != nil {
		errs = append(errs, err)
	}
	if c.SimUsers < 0 || c.SimAttempts < 0 || c.SimStock < 0 {
		errs = append(errs, errors.New("simulation sizes must not be negative"))
	}
	if c.NullTTL > c.CacheTTL {
		errs = append(errs, fmt.Errorf("null ttl %s exceeds cache ttl %s", c.NullTTL, c.CacheTTL))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ReadStrategy is Strategy parsed; Validate has already checked it.
func (c Config) ReadStrategy() flashguard.Strategy {
	s, _ := flashguard.ParseStrategy(c.Strategy)
	return s
}
