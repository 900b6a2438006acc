// Package sloghooks logs shield events through log/slog with sampling for
// the high-volume ones (null hits, stale reads, contention).
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/flashguard"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery  uint64
	NullHitEvery   uint64
	ContendedEvery uint64
	StaleEvery     uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	nullHitCtr   atomic.Uint64
	contendedCtr atomic.Uint64
	staleCtr     atomic.Uint64
}

var _ flashguard.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("flashguard.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) NullHit(storageKey string) {
	if h.l == nil || !sample(h.opts.NullHitEvery, &h.nullHitCtr) {
		return
	}
	h.l.Debug("flashguard.null_hit",
		"key", h.redact(storageKey))
}

func (h *Hooks) LockContended(lockKey string) {
	if h.l == nil || !sample(h.opts.ContendedEvery, &h.contendedCtr) {
		return
	}
	h.l.Debug("flashguard.lock_contended",
		"key", h.redact(lockKey))
}

func (h *Hooks) StaleServed(storageKey string) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Info("flashguard.stale_served",
		"key", h.redact(storageKey))
}

func (h *Hooks) RebuildRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("flashguard.rebuild_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) RebuildFailed(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("flashguard.rebuild_failed",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("flashguard.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) LockReleaseError(lockKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("flashguard.lock_release_error",
		"key", h.redact(lockKey),
		"err", err)
}
