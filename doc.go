// Package flashguard shields a relational store from cache failure modes and
// backs a flash-sale purchase flow.
//
// Components:
//   - Shield[V]: get-or-populate over a shared byte store with three
//     strategies: pass-through (null markers against penetration), mutex
//     rebuild (one loader per key against breakdown) and logical expiration
//     (prewarmed hot keys, background refresh, never blocks).
//   - Provider: byte store with TTL (Redis, Ristretto, BigCache).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - dlock: leased locks (Redis SET NX PX, or in-process).
//   - idgen + counter: (seconds << 32 | daily sequence) order ids.
//   - purchase: one order per user per promotion, stock never negative.
//
// Keys:
//
//	cache:<ns>:<id>         - entity, null marker ("") or logical frame
//	lock:<ns>:<id>          - rebuild lock
//	lock:order:<userID>     - per-user purchase lock
//	icr:<ns>:<yyyy:MM:dd>   - daily id sequence
//
// Read pattern:
//
//	shops, _ := flashguard.New[Shop](flashguard.Options[Shop]{
//	    Namespace: "shop",
//	    Provider:  provider,
//	    Codec:     codec.Msgpack[Shop]{},
//	    Loader:    loadShop,
//	    Locker:    locker,
//	})
//	shop, ok, err := shops.Get(ctx, "42")
package flashguard
