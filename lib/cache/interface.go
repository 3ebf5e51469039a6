package cache

import "time"

// ICache is a bounded, concurrency-safe key-value cache.
type ICache[V any] interface {
	// Put inserts or overwrites the value for a key and marks it as most recently used.
	Put(key string, value V)
	// Get returns the value for a key and refreshes its access time.
	// The boolean is false on a miss, including entries that have expired.
	Get(key string) (value V, ok bool)
	// Invalidate removes the key if present.
	Invalidate(key string)
	// Len returns the number of live entries.
	Len() int
	// Stats returns a snapshot of the cache counters.
	Stats() Stats
	// Close stops the background sweeper. The cache stays usable for Get/Put but
	// expired entries are then only removed lazily.
	Close()
}

// Stats holds counters of a cache
type Stats struct {
	Size        int    `json:"size"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`   // removed because of the size cap
	Expirations uint64 `json:"expirations"` // removed because of the TTL
}

// Options configures a cache
type Options struct {
	MaxSize       int              // Maximum number of live entries (0 = caching disabled)
	TTL           time.Duration    // Expire entries not accessed for longer than TTL (0 = never)
	SweepInterval time.Duration    // Background sweep interval (0 = derived from TTL, <0 = no sweeper)
	Clock         func() time.Time // Time source (nil = time.Now)
}

const (
	defaultMaxSize   = 1000
	defaultTTL       = 300 * time.Second
	minSweepInterval = 10 * time.Millisecond
	maxSweepInterval = time.Minute
)

// DefaultOptions returns the default cache options
func DefaultOptions() *Options {
	return &Options{
		MaxSize: defaultMaxSize,
		TTL:     defaultTTL,
	}
}

// sweepInterval derives the sweeper period from the options
func (o *Options) sweepInterval() time.Duration {
	if o.SweepInterval != 0 {
		return o.SweepInterval
	}
	if o.TTL <= 0 {
		return -1
	}
	interval := o.TTL / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	if interval > maxSweepInterval {
		interval = maxSweepInterval
	}
	return interval
}
