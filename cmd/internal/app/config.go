package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// RedisURL switches the TTL store (CSRF, MFA, OAuth state) from the
	// in-process map to Redis, so multiple instances share one view.
	RedisURL string

	// If true, /readyz returns 503 until the database is reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, WAYBILL_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and opaque
	// token hashing must be HMAC-based.
	RequireTokenHMAC bool

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("WAYBILL_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("WAYBILL_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("WAYBILL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("WAYBILL_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("WAYBILL_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("WAYBILL_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("WAYBILL_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("WAYBILL_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("WAYBILL_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("WAYBILL_DB_MIN_CONNS", 0),

		RedisURL: EnvString("WAYBILL_REDIS_URL", ""),

		ReadinessRequireDB: EnvBool("WAYBILL_READINESS_REQUIRE_DB", true),

		RequireTokenHMAC: EnvBool("WAYBILL_REQUIRE_TOKEN_HMAC", false),

		MetricsEnabled: EnvBool("WAYBILL_METRICS_ENABLED", true),
	}
}
