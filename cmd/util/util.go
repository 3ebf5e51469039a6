package util

import (
	"fmt"
	"github.com/ValentinKolb/wbKV/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and enables WBKV_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("wbkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Server Configuration (serve, diag)
// --------------------------------------------------------------------------

// SetupServerFlags adds the save service, store and http flags to a command
func SetupServerFlags(cmd *cobra.Command) {
	def := common.DefaultServerConfig()

	key := "config"
	cmd.PersistentFlags().String(key, "", WrapString("Optional YAML config file. Its keys are the flag names (e.g. store-path: data/wbkv.db), flags and environment variables take precedence"))

	key = "enabled"
	cmd.PersistentFlags().Bool(key, def.Enabled, WrapString("Whether the save service accepts operations. A disabled service answers every request with OFFLINE"))

	key = "store-path"
	cmd.PersistentFlags().String(key, def.StorePath, WrapString("Location of the SQLite database file (:memory: for an in-memory database)"))

	key = "store-driver"
	cmd.PersistentFlags().String(key, def.StoreDriver, WrapString("SQLite driver to use (sqlite = pure go, sqlite3 = cgo)"))

	key = "cache-size"
	cmd.PersistentFlags().Int(key, def.CacheSize, WrapString("Maximum number of cached values (0 disables the cache)"))

	key = "cache-ttl"
	cmd.PersistentFlags().Int64(key, def.CacheTTLSecond, WrapString("Time in seconds after the last access a cached value expires (0 = never)"))

	key = "flush-interval"
	cmd.PersistentFlags().Int64(key, def.FlushIntervalSecond, WrapString("Time in seconds between two flushes of pending values to the store"))

	key = "flush-timeout"
	cmd.PersistentFlags().Int64(key, def.FlushTimeoutSecond, WrapString("Time in seconds a single periodic flush may take (0 = no limit)"))

	key = "workers"
	cmd.PersistentFlags().Int(key, def.Workers, WrapString("Maximum number of concurrently running load, delete and exists operations"))

	key = "endpoint"
	cmd.PersistentFlags().String(key, def.Endpoint, WrapString("The address on which the HTTP API will listen (e.g. :8080, localhost:8080)"))

	key = "timeout"
	cmd.PersistentFlags().Int64(key, def.TimeoutSecond, WrapString("HTTP read header and shutdown timeout in seconds"))

	key = "log-level"
	cmd.PersistentFlags().String(key, def.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// GetServerConfig reads the server configuration from the config file (if any),
// the command line flags and the environment variables
func GetServerConfig() (*common.ServerConfig, error) {
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	conf := &common.ServerConfig{
		Enabled:             viper.GetBool("enabled"),
		StorePath:           viper.GetString("store-path"),
		StoreDriver:         viper.GetString("store-driver"),
		CacheSize:           viper.GetInt("cache-size"),
		CacheTTLSecond:      viper.GetInt64("cache-ttl"),
		FlushIntervalSecond: viper.GetInt64("flush-interval"),
		FlushTimeoutSecond:  viper.GetInt64("flush-timeout"),
		Workers:             viper.GetInt("workers"),
		Endpoint:            viper.GetString("endpoint"),
		TimeoutSecond:       viper.GetInt64("timeout"),
		LogLevel:            viper.GetString("log-level"),
	}

	if _, err := common.ParseLogLevel(conf.LogLevel); err != nil {
		return nil, err
	}
	if conf.CacheSize < 0 || conf.CacheTTLSecond < 0 || conf.FlushIntervalSecond < 0 {
		return nil, fmt.Errorf("cache-size, cache-ttl and flush-interval must not be negative")
	}

	return conf, nil
}

// --------------------------------------------------------------------------
// Client Configuration (kv)
// --------------------------------------------------------------------------

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the wbKV server. Multiple endpoints can be specified as a comma-separated list, requests are distributed round-robin"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to try a request before giving up"))
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	var endpoints []string
	for _, e := range strings.Split(viper.GetString("endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return &common.ClientConfig{
		Endpoints:     endpoints,
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("retries"),
	}
}
