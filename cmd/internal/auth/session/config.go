package session

import (
	"os"
	"strconv"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the sliding idle timeout, token entropy size, and the cadence
// of the expired-row sweeper.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// IdleTimeout is the sliding expiry window. Every authenticated read
	// pushes the session's expiry to now + IdleTimeout.
	IdleTimeout time.Duration

	// TokenBytes defines the number of random bytes used to generate
	// opaque session tokens.
	TokenBytes int

	// SweepInterval is the period between expired-row sweeps.
	SweepInterval time.Duration

	// SweepInitialDelay postpones the first sweep after startup so that a
	// crash-looping process does not hammer the database.
	SweepInitialDelay time.Duration
}

// DefaultConfig returns a secure default configuration suitable for development.
//
// Production environments should override values via environment variables.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:       time.Hour,
		TokenBytes:        32,
		SweepInterval:     15 * time.Minute,
		SweepInitialDelay: time.Minute,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - WAYBILL_SESSION_IDLE_TTL
//   - WAYBILL_SESSION_TOKEN_BYTES
//   - WAYBILL_SESSION_SWEEP_INTERVAL
//   - WAYBILL_SESSION_SWEEP_INITIAL_DELAY
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WAYBILL_SESSION_IDLE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.IdleTimeout = d
	}

	if v := os.Getenv("WAYBILL_SESSION_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	if v := os.Getenv("WAYBILL_SESSION_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	if v := os.Getenv("WAYBILL_SESSION_SWEEP_INITIAL_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInitialDelay = d
	}

	return cfg, nil
}
