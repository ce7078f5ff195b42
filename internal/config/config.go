package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store      string // "memory" | "redis" | "sqlite"
	SQLitePath string // database file for the sqlite store
	SeedFile   string // logbook imported into an empty catalog (optional, empty = no seed)

	SessionTTL     time.Duration // idle edit sessions are discarded after this long
	ReaperInterval time.Duration // how often idle sessions are looked for
	PersistQueue   int           // notifications buffered for the store writer

	// Reverse geocoding
	GeocoderEnabled     bool
	GeocoderURL         string        // Nominatim-compatible base URL
	GeocoderUserAgent   string        // sent on every lookup, required by the public Nominatim policy
	GeocoderTimeout     time.Duration // per-lookup timeout
	GeocoderMinInterval time.Duration // minimum spacing between upstream calls
	GeocodeBurst        int           // per-client burst on the geocode endpoint
	GeocodePerMin       int           // per-client refill on the geocode endpoint

	// Redis (only when Store == "redis")
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("DIVESITE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("DIVESITE_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("DIVESITE_REQUEST_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("DIVESITE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("DIVESITE_PRETTY_LOG", true),

		// Catalog persistence
		Store:      strings.ToLower(getenv("DIVESITE_STORE", StoreSQLite)),
		SQLitePath: getenv("DIVESITE_SQLITE_PATH", "/data/divesite.db"),
		SeedFile:   getenv("DIVESITE_SEED_FILE", ""), // Optional, empty = no seed

		// Edit sessions
		SessionTTL:     mustDuration("DIVESITE_SESSION_TTL", 2*time.Hour),
		ReaperInterval: mustDuration("DIVESITE_REAPER_INTERVAL", 5*time.Minute),
		PersistQueue:   getenvInt("DIVESITE_PERSIST_QUEUE", 256),

		// Geocoder
		GeocoderEnabled:     mustBool("DIVESITE_GEOCODER_ENABLED", true),
		GeocoderURL:         getenv("DIVESITE_GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:   getenv("DIVESITE_GEOCODER_USER_AGENT", "divesite/1.0"),
		GeocoderTimeout:     mustDuration("DIVESITE_GEOCODER_TIMEOUT", 10*time.Second),
		GeocoderMinInterval: mustDuration("DIVESITE_GEOCODER_MIN_INTERVAL", time.Second),
		GeocodeBurst:        getenvInt("DIVESITE_GEOCODE_BURST", 5),
		GeocodePerMin:       getenvInt("DIVESITE_GEOCODE_PER_MIN", 30),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("DIVESITE_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("DIVESITE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("DIVESITE_TRUST_PROXY", false),
	}

	switch cfg.Store {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		loadRedis(cfg)
	default:
		panic(fmt.Sprintf("❌ FATAL: DIVESITE_STORE must be one of memory, redis, sqlite (got %q)", cfg.Store))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// loadRedis reads the redis settings, which are only required for the redis store.
func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("DIVESITE_REDIS_ADDR")
	cfg.RedisUser = getenv("DIVESITE_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("DIVESITE_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("DIVESITE_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("DIVESITE_REDIS_DB")
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: DIVESITE_REDIS_PASSWORD is required when DIVESITE_REDIS_PASSWORD_REQUIRED=true")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
