package util

import "strings"

// CacheKey returns the storage key for an entity: "cache:<ns>:<id>".
func CacheKey(ns, id string) string {
	return Join("cache", ns, id)
}

// LockKey returns the lock name for rebuilding an entity: "<ns>:<id>".
// The locker adds its own prefix.
func LockKey(ns, id string) string {
	return Join(ns, id)
}

// Join concatenates non-empty parts with ':'.
func Join(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	var b strings.Builder
	b.Grow(n)
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	return b.String()
}
