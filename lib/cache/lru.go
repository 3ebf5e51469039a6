package cache

import (
	"github.com/ValentinKolb/wbKV/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("cache")

// entry is a cached value with its last access time
type entry[V any] struct {
	value      V
	lastAccess time.Time
}

// lruImpl implements ICache with least-recently-accessed eviction and a sliding TTL
type lruImpl[V any] struct {
	mu      sync.Mutex
	data    map[string]*entry[V]
	recency *util.KeyedHeap[string] // priority = access tick
	tick    uint64                  // logical clock, incremented on every access (guarded by mu)

	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	// sweeper
	stop    chan struct{}
	sweeper sync.WaitGroup
	closed  atomic.Bool
}

// NewLRU creates a new cache with the specified options (optional).
// If the options enable expiry, a background sweeper goroutine is started,
// stop it with Close.
func NewLRU[V any](opts *Options) ICache[V] {
	if opts == nil {
		opts = DefaultOptions()
	}

	c := &lruImpl[V]{
		data:    make(map[string]*entry[V]),
		recency: util.NewKeyedHeap[string](),
		maxSize: opts.MaxSize,
		ttl:     opts.TTL,
		now:     opts.Clock,
		stop:    make(chan struct{}),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.maxSize < 0 {
		c.maxSize = 0
	}

	if interval := opts.sweepInterval(); interval > 0 && c.ttl > 0 && c.maxSize > 0 {
		c.sweeper.Add(1)
		go c.sweepLoop(interval)
	}

	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see cache/interface.go)
// --------------------------------------------------------------------------

func (c *lruImpl[V]) Put(key string, value V) {
	if c.maxSize == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	if e, ok := c.data[key]; ok {
		e.value = value
		e.lastAccess = c.now()
	} else {
		c.data[key] = &entry[V]{value: value, lastAccess: c.now()}
	}
	c.recency.Set(key, c.tick)

	// evict least recently accessed entries until the size cap holds again
	for len(c.data) > c.maxSize {
		victim, _, ok := c.recency.PopMin()
		if !ok {
			break
		}
		delete(c.data, victim)
		c.evictions.Add(1)
	}
}

func (c *lruImpl[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	now := c.now()
	if c.isExpired(e, now) {
		c.removeLocked(key)
		c.expirations.Add(1)
		c.misses.Add(1)
		return zero, false
	}

	// refresh the ttl window and recency
	c.tick++
	e.lastAccess = now
	c.recency.Set(key, c.tick)
	c.hits.Add(1)

	return e.value, true
}

func (c *lruImpl[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *lruImpl[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *lruImpl[V]) Stats() Stats {
	return Stats{
		Size:        c.Len(),
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}

func (c *lruImpl[V]) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stop)
		c.sweeper.Wait()
	}
}

// --------------------------------------------------------------------------
// Expiry
// --------------------------------------------------------------------------

// isExpired reports whether the entry was untouched for longer than the ttl
func (c *lruImpl[V]) isExpired(e *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.lastAccess) > c.ttl
}

// removeLocked deletes a key from the map and the heap, mu must be held
func (c *lruImpl[V]) removeLocked(key string) {
	if _, ok := c.data[key]; ok {
		delete(c.data, key)
		c.recency.Remove(key)
	}
}

// sweep removes all expired entries and returns how many were removed.
//
// The heap minimum has the oldest access tick and therefore also the oldest
// access time, so the sweep can stop at the first entry that is still fresh.
func (c *lruImpl[V]) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for {
		key, _, ok := c.recency.Peek()
		if !ok {
			break
		}
		e := c.data[key]
		if e != nil && !c.isExpired(e, now) {
			break
		}
		c.removeLocked(key)
		if e == nil {
			// heap and map out of sync, drop the stale heap slot
			c.recency.Remove(key)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.expirations.Add(uint64(removed))
	}
	return removed
}

// sweepLoop runs sweep periodically until Close is called
// WARNING: this method should never be called directly! It is started by NewLRU.
func (c *lruImpl[V]) sweepLoop(interval time.Duration) {
	defer c.sweeper.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				Logger.Debugf("swept %d expired entries", n)
			}
		}
	}
}
