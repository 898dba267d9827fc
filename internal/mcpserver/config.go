package mcpserver

import (
	"time"

	"github.com/erraggy/paramcontract/internal/options"
)

// serverConfig holds all configurable MCP server defaults.
// Loaded once at startup from environment variables via loadConfig().
type serverConfig struct {
	// Validation defaults shared with the CLI.
	options.Settings

	// Cache settings.
	CacheEnabled       bool
	CacheMaxSize       int
	CacheFileTTL       time.Duration
	CacheURLTTL        time.Duration
	CacheContentTTL    time.Duration
	CacheSweepInterval time.Duration

	// Input limits.
	MaxInlineSize int64
	ListLimit     int
	MaxLimit      int

	// URL input settings. AllowPrivateIPs lets url inputs reach loopback and
	// private networks.
	FetchTimeout    time.Duration
	AllowPrivateIPs bool
}

// cfg is the active server configuration, initialized at package load time.
var cfg = loadConfig()

// loadConfig reads configuration from PARAMCONTRACT_* environment variables.
// Invalid values log a warning and fall back to the hardcoded default.
func loadConfig() *serverConfig {
	const p = options.EnvPrefix
	return &serverConfig{
		Settings:           options.LoadSettings(),
		CacheEnabled:       options.EnvBool(p+"CACHE_ENABLED", true),
		CacheMaxSize:       options.EnvInt(p+"CACHE_MAX_SIZE", 10),
		CacheFileTTL:       options.EnvDuration(p+"CACHE_FILE_TTL", 15*time.Minute),
		CacheURLTTL:        options.EnvDuration(p+"CACHE_URL_TTL", 5*time.Minute),
		CacheContentTTL:    options.EnvDuration(p+"CACHE_CONTENT_TTL", 15*time.Minute),
		CacheSweepInterval: options.EnvDuration(p+"CACHE_SWEEP_INTERVAL", 60*time.Second),
		MaxInlineSize:      options.EnvInt64(p+"MAX_INLINE_SIZE", 1<<20),
		ListLimit:          options.EnvInt(p+"LIST_LIMIT", 100),
		MaxLimit:           options.EnvInt(p+"MAX_LIMIT", 1000),
		FetchTimeout:       options.EnvDuration(p+"FETCH_TIMEOUT", 30*time.Second),
		AllowPrivateIPs:    options.EnvBool(p+"ALLOW_PRIVATE_IPS", false),
	}
}
