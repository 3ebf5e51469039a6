package savesvc

import (
	"runtime"
	"time"
)

// Config holds the parameters of a save service
type Config struct {
	// Enabled must be true, a disabled service is offline forever
	Enabled bool

	// CacheSize is the maximum number of cached values (0 disables the cache)
	CacheSize int
	// CacheTTL is the time after the last access a cached value expires (0 = never)
	CacheTTL time.Duration

	// FlushInterval is the time between two flush cycles (0 = only Flush and Close write)
	FlushInterval time.Duration
	// FlushTimeout limits a single periodic flush cycle (0 = no limit)
	FlushTimeout time.Duration

	// Workers is the maximum number of concurrently running Load/Delete/Exists operations
	Workers int

	// Clock is the time source of the cache (nil = time.Now)
	Clock func() time.Time
}

// Default values
const (
	DefaultCacheSize     = 1000
	DefaultCacheTTL      = 300 * time.Second
	DefaultFlushInterval = 60 * time.Second
)

// DefaultConfig returns the default configuration. Note that the service is disabled
// by default and has to be enabled explicitly.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		CacheSize:     DefaultCacheSize,
		CacheTTL:      DefaultCacheTTL,
		FlushInterval: DefaultFlushInterval,
		Workers:       defaultWorkers(),
	}
}

func defaultWorkers() int {
	return 4 * runtime.GOMAXPROCS(0)
}
