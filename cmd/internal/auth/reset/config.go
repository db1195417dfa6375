package reset

import (
	"os"
	"strconv"
	"time"
)

// Config defines runtime configuration for the password-reset subsystem.
type Config struct {
	// TokenTTL bounds how long an issued token can be redeemed.
	TokenTTL time.Duration

	// TokenBytes defines the number of random bytes used to generate
	// opaque reset tokens.
	TokenBytes int
}

// DefaultConfig returns secure defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:   15 * time.Minute,
		TokenBytes: 32,
	}
}

// LoadConfigFromEnv loads reset configuration from environment variables.
//
// Optional:
//   - WAYBILL_RESET_TOKEN_TTL (Go duration)
//   - WAYBILL_RESET_TOKEN_BYTES
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WAYBILL_RESET_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("WAYBILL_RESET_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	return cfg, nil
}
