// Package config holds process-wide runtime knobs loaded from the
// environment at boot, following a plain-package-var convention instead of
// a config struct threaded through every call.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotenv runs before the vars below are initialized so a .env file in the
// working directory can supply values for the os.Getenv lookups that follow.
var loadDotenv = godotenv.Load()

var (
	// LogLevel controls the zap logger's minimum level.
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	// LogEncoding selects "json" (production) or "console" (development) logging.
	LogEncoding = getEnvOrDefault("LOG_ENCODING", "json")

	// ListenAddr is the address the public /v1 and /admin HTTP servers bind to.
	ListenAddr = getEnvOrDefault("LISTEN_ADDR", ":3000")

	// StoreDriver selects the GORM driver backing the config store: sqlite, mysql, or postgres.
	StoreDriver = getEnvOrDefault("STORE_DRIVER", "sqlite")
	// StoreDSN is the driver-specific data source name.
	StoreDSN = getEnvOrDefault("STORE_DSN", "file:gateway.db?cache=shared&_pragma=busy_timeout(5000)")
	// StoreSchemaVersion is the expected schema version string; boot refuses to start on mismatch.
	StoreSchemaVersion = getEnvOrDefault("STORE_SCHEMA_VERSION", "version-1")

	// AdminToken statically authenticates the admin CRUD surface when AdminJWTSecret is empty.
	AdminToken = getEnvOrDefault("ADMIN_TOKEN", "")
	// AdminJWTSecret, when set, is used to verify admin bearer JWTs instead of AdminToken.
	AdminJWTSecret = getEnvOrDefault("ADMIN_JWT_SECRET", "")

	// SessionSecret seeds secret-at-rest derivation (store API-key hashing salt, etc).
	SessionSecret = getEnvOrDefault("SESSION_SECRET", "")

	// RedisAddr, when non-empty, enables the Principal-view L2 cache.
	RedisAddr = getEnvOrDefault("REDIS_ADDR", "")
	// PrincipalCacheTTL bounds how long a resolved Principal view is cached.
	PrincipalCacheTTL = getEnvDurationOrDefault("PRINCIPAL_CACHE_TTL", 30*time.Second)

	// DefaultMaxQueueSize is used for a Model whose max_queue_size is 0 (unbounded is simulated
	// with a large bound so the channel can still be allocated up front).
	DefaultMaxQueueSize = getEnvIntOrDefault("DEFAULT_MAX_QUEUE_SIZE", 1<<20)

	// UpstreamConnectTimeout bounds dialing the upstream provider (§5: "connect timeout ≈5s").
	UpstreamConnectTimeout = getEnvDurationOrDefault("UPSTREAM_CONNECT_TIMEOUT", 5*time.Second)
	// UpstreamRequestTimeout bounds the entire upstream call, transport-level.
	UpstreamRequestTimeout = getEnvDurationOrDefault("UPSTREAM_REQUEST_TIMEOUT", 120*time.Second)

	// RelayProxy optionally proxies outbound upstream HTTP calls.
	RelayProxy = getEnvOrDefault("RELAY_PROXY", "")
	// RelayTimeout is the overall deadline (seconds) for the upstream HTTP client; 0 = no extra deadline.
	RelayTimeout = getEnvIntOrDefault("RELAY_TIMEOUT", 0)

	// OpenTelemetryEnabled toggles the OTLP trace/metric exporters.
	OpenTelemetryEnabled = getEnvBoolOrDefault("OTEL_ENABLED", false)
	// OpenTelemetryEndpoint is the OTLP collector endpoint.
	OpenTelemetryEndpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	// OpenTelemetryInsecure disables TLS for the OTLP exporters.
	OpenTelemetryInsecure = getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	// OpenTelemetryServiceName identifies this process in traces/metrics.
	OpenTelemetryServiceName = getEnvOrDefault("OTEL_SERVICE_NAME", "relayforge-gateway")
	// OpenTelemetryEnvironment tags traces/metrics with a deployment environment.
	OpenTelemetryEnvironment = getEnvOrDefault("OTEL_ENVIRONMENT", "development")
)

// Load reads an optional .env file into the process environment. It is safe
// to call when no .env file exists.
func Load() {
	_ = godotenv.Load()
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
