// Command flashguard seeds a shop and a promotion, prewarms the shop cache
// and runs a simulated flash sale against the purchase pipeline, then checks
// that no promotion oversold and no user ordered twice.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/flashguard"
	"github.com/unkn0wn-root/flashguard/catalog"
	"github.com/unkn0wn-root/flashguard/config"
	asynchook "github.com/unkn0wn-root/flashguard/hooks/async"
	"github.com/unkn0wn-root/flashguard/idgen"
	logruslog "github.com/unkn0wn-root/flashguard/log/logrus"
	slogadapter "github.com/unkn0wn-root/flashguard/log/slog"
	zaplog "github.com/unkn0wn-root/flashguard/log/zap"
	"github.com/unkn0wn-root/flashguard/purchase"
	"github.com/unkn0wn-root/flashguard/sloghooks"
	"github.com/unkn0wn-root/flashguard/store/sqlstore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "flashguard:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newLog, flush, err := newLoggerFactory(cfg)
	if err != nil {
		return err
	}
	defer flush()
	log := newLog("main")

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, be.close(context.Background())) }()

	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DBDSN,
		MaxOpenConns: cfg.DBMaxConns,
		EnsureSchema: true,
	})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, db.Close()) }()

	hooks := asynchook.New(sloghooks.New(hookLogger(cfg), sloghooks.Options{
		NullHitEvery:   100,
		ContendedEvery: 50,
		StaleEvery:     100,
	}), 2, 1024)
	defer hooks.Close()

	ids, err := idgen.New(be.counter)
	if err != nil {
		return err
	}

	shopID, promoID, err := seed(ctx, db, cfg)
	if err != nil {
		return err
	}
	log.Info("seeded", flashguard.Fields{"shop_id": shopID, "promotion_id": promoID, "stock": cfg.SimStock})

	cat, err := catalog.New(db, catalog.Options{
		Provider:       be.provider,
		Locker:         be.locker,
		Strategy:       cfg.ReadStrategy(),
		Logger:         newLog("catalog"),
		Hooks:          hooks,
		TTL:            cfg.CacheTTL,
		NullTTL:        cfg.NullTTL,
		LogicalTTL:     cfg.LogicalTTL,
		LockLease:      cfg.LockLease,
		RebuildWorkers: cfg.RebuildWorkers,
	})
	if err != nil {
		return err
	}
	// the shield owns the provider from here on
	be.provider = nil
	defer func() { err = errors.Join(err, cat.Close(context.Background())) }()

	if n, err := cat.Prewarm(ctx, shopID); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("prewarm: shop %d not found", shopID)
	}

	pipe, err := purchase.New(purchase.Config{
		Promotions: db,
		Store:      db,
		Locker:     be.locker,
		IDs:        ids,
		Logger:     newLog("purchase"),
		LockLease:  cfg.LockLease,
		LockWait:   cfg.LockWait,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	sum, err := simulate(ctx, cfg, cat, pipe, shopID, promoID)
	if err != nil {
		return err
	}
	if err := verify(ctx, db, promoID, cfg.SimStock, sum); err != nil {
		return err
	}

	log.Info("flash sale finished", flashguard.Fields{
		"elapsed":        time.Since(start).String(),
		"users":          cfg.SimUsers,
		"attempts":       sum.attempts,
		"ordered":        sum.outcomes[purchase.Ordered],
		"out_of_stock":   sum.outcomes[purchase.OutOfStock],
		"already_bought": sum.outcomes[purchase.AlreadyPurchased],
		"lock_busy":      sum.lockBusy,
		"shop_reads":     sum.shopReads,
		"hooks_dropped":  hooks.Dropped(),
	})
	return nil
}

// newLoggerFactory returns a constructor for per-component loggers on the
// configured backend and a flush func to run before exit.
func newLoggerFactory(cfg config.Config) (func(component string) flashguard.Logger, func(), error) {
	switch cfg.LogBackend {
	case config.LogLogrus:
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		l := logrus.New()
		l.SetLevel(lvl)
		l.SetFormatter(&logrus.JSONFormatter{})
		return func(c string) flashguard.Logger { return logruslog.New(l, c) }, func() {}, nil

	case config.LogSlog:
		l := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)}))
		return func(c string) flashguard.Logger {
			return slogadapter.Logger{L: l.With("component", c)}
		}, func() {}, nil

	default:
		lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = lvl
		l, err := zc.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("build zap logger: %w", err)
		}
		return func(c string) flashguard.Logger { return zaplog.New(l, c) }, func() { _ = l.Sync() }, nil
	}
}

func hookLogger(cfg config.Config) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel(cfg.LogLevel)})
	return slog.New(h).With("component", "shield_hooks")
}

func slogLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
