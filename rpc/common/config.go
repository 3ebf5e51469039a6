package common

import (
	"fmt"
	"github.com/ValentinKolb/wbKV/lib/savesvc"
	"github.com/ValentinKolb/wbKV/lib/store/sqlstore"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a wbKV server
type ServerConfig struct {
	// whether the save service accepts operations
	Enabled bool `yaml:"enabled"`

	// Durable store
	StorePath   string `yaml:"store_path"`
	StoreDriver string `yaml:"store_driver"`

	// Cache
	CacheSize      int   `yaml:"cache_size"`
	CacheTTLSecond int64 `yaml:"cache_ttl"`

	// Write behind
	FlushIntervalSecond int64 `yaml:"flush_interval"`
	FlushTimeoutSecond  int64 `yaml:"flush_timeout"`
	Workers             int   `yaml:"workers"`

	// HTTP api settings
	Endpoint      string `yaml:"endpoint"`
	TimeoutSecond int64  `yaml:"timeout"`

	// Logging configuration
	LogLevel string `yaml:"log_level"`
}

// DefaultServerConfig returns the configuration used when no flags, env vars or
// config files are given
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Enabled:             true,
		StorePath:           "wbkv.db",
		StoreDriver:         sqlstore.DriverModernc,
		CacheSize:           savesvc.DefaultCacheSize,
		CacheTTLSecond:      int64(savesvc.DefaultCacheTTL / time.Second),
		FlushIntervalSecond: int64(savesvc.DefaultFlushInterval / time.Second),
		FlushTimeoutSecond:  30,
		Workers:             16,
		Endpoint:            ":8080",
		TimeoutSecond:       10,
		LogLevel:            "info",
	}
}

// ToServiceConfig converts the ServerConfig to the save service configuration
func (c *ServerConfig) ToServiceConfig() savesvc.Config {
	return savesvc.Config{
		Enabled:       c.Enabled,
		CacheSize:     c.CacheSize,
		CacheTTL:      time.Duration(c.CacheTTLSecond) * time.Second,
		FlushInterval: time.Duration(c.FlushIntervalSecond) * time.Second,
		FlushTimeout:  time.Duration(c.FlushTimeoutSecond) * time.Second,
		Workers:       c.Workers,
	}
}

// ToStoreOptions converts the ServerConfig to the sql store options
func (c *ServerConfig) ToStoreOptions() sqlstore.Options {
	return sqlstore.Options{
		Path:   c.StorePath,
		Driver: c.StoreDriver,
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Service
	addSection("Save Service")
	addField("Enabled", strconv.FormatBool(c.Enabled))
	addField("Workers", strconv.Itoa(c.Workers))

	// Storage
	addSection("Storage")
	addField("Location", c.StorePath)
	addField("Driver", c.StoreDriver)

	// Cache
	addSection("Cache")
	addField("Max Size", strconv.Itoa(c.CacheSize))
	addField("Expire After Access", fmt.Sprintf("%d sec", c.CacheTTLSecond))

	// Write behind
	addSection("Write Behind")
	addField("Flush Interval", fmt.Sprintf("%d sec", c.FlushIntervalSecond))
	addField("Flush Timeout", fmt.Sprintf("%d sec", c.FlushTimeoutSecond))

	// HTTP settings
	addSection("HTTP Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
