package csrf

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"time"

	"waybill/cmd/internal/cache"
)

const keyPrefix = "csrf:"

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid config")

// Config defines runtime configuration for the CSRF subsystem.
type Config struct {
	// TokenTTL bounds how long an issued token stays valid.
	TokenTTL time.Duration

	// TokenBytes defines the number of random bytes per token.
	TokenBytes int
}

// DefaultConfig returns secure defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:   30 * time.Minute,
		TokenBytes: 32,
	}
}

// LoadConfigFromEnv loads CSRF configuration from environment variables.
//
// Optional:
//   - WAYBILL_CSRF_TOKEN_TTL (Go duration)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WAYBILL_CSRF_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TokenTTL = d
	}

	return cfg, nil
}

// Manager issues and validates single-use CSRF tokens.
type Manager struct {
	cfg   Config
	store cache.Store
	log   *slog.Logger
}

// NewManager constructs a Manager over the given TTL store.
func NewManager(cfg Config, store cache.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg, store: store, log: log}
}

// Issue mints a fresh token and stores it with an absolute expiry.
func (m *Manager) Issue(ctx context.Context) (string, error) {
	b := make([]byte, m.cfg.TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	if err := m.store.Set(ctx, keyPrefix+token, []byte{1}, m.cfg.TokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// Validate consumes a token. It reports true exactly once per issued token:
// the read and the delete are one store operation, so a replay or a
// concurrent double-submit loses. Missing, expired, and already-used tokens
// are indistinguishable, and store failures count as rejection.
func (m *Manager) Validate(ctx context.Context, token string) bool {
	if token == "" || len(token) > 1024 {
		return false
	}

	_, err := m.store.GetDel(ctx, keyPrefix+token)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.log.ErrorContext(ctx, "csrf.validate.store_error", "err", err)
		}
		return false
	}
	return true
}
