// Package cache provides the in-memory speed layer of the save service: a
// size-bounded, access-expiring mapping from key to value.
//
// The cache gives no durability guarantee. A miss is a normal outcome and is never
// reported as a failure; callers fall back to durable storage.
//
// Key Components:
//
//   - ICache Interface: Put (unconditional overwrite), Get (refreshes the access
//     time of the entry, i.e. sliding TTL), Invalidate, plus Len/Stats/Close.
//
//   - LRU Implementation: a map from key to entry and a util.KeyedHeap ordered by a
//     logical access tick. The heap minimum is always the least recently accessed
//     entry, which makes it both the next size-eviction victim and the oldest
//     candidate for TTL expiry.
//
// Eviction Policy:
//   - Size: inserting a new key beyond MaxSize evicts least-recently-accessed first.
//   - TTL: an entry not accessed for longer than TTL is removed lazily on the next
//     Get and by a background sweeper goroutine.
//   - MaxSize=0 disables caching entirely, TTL=0 disables expiry.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. A single mutex guards the map and the
//	heap so that recency order is global (a sharded layout would only give per-shard
//	LRU order). Counters are atomics and can be read without the lock.
//
// Usage Example:
//
//	c := cache.NewLRU[string](&cache.Options{MaxSize: 1000, TTL: 5 * time.Minute})
//	defer c.Close()
//
//	c.Put("player:1", "alice|42")
//	if v, ok := c.Get("player:1"); ok {
//	    fmt.Println(v)
//	}
package cache
