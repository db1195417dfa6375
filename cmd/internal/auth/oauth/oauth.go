package oauth

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

const stateKeyPrefix = "oauth_state:"

var (
	// ErrStateInvalid is returned when a callback presents an unknown,
	// expired, or already-used state nonce.
	ErrStateInvalid = errors.New("invalid oauth state")

	// ErrNotConfigured is returned when no real provider is wired.
	ErrNotConfigured = errors.New("oauth provider not configured")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

// Identity is the provider's final authenticated identity. It is the only
// thing the login flow consumes from the handshake.
type Identity struct {
	Email    string
	FullName string
}

// Provider abstracts the external OAuth strategy.
type Provider interface {
	// AuthURL returns the authorization redirect for a state nonce.
	AuthURL(state string) string

	// Exchange turns a callback authorization code into an identity.
	Exchange(ctx context.Context, code string) (Identity, error)
}

// NoopProvider rejects every exchange. Used until a real provider is wired.
type NoopProvider struct{}

// AuthURL implements Provider.
func (NoopProvider) AuthURL(string) string { return "" }

// Exchange implements Provider.
func (NoopProvider) Exchange(context.Context, string) (Identity, error) {
	return Identity{}, ErrNotConfigured
}

// Config defines runtime configuration for the OAuth state flow.
type Config struct {
	// StateTTL bounds how old a state nonce may be at callback time.
	StateTTL time.Duration

	// StateBytes defines the number of random bytes per nonce.
	StateBytes int
}

// DefaultConfig returns secure defaults.
func DefaultConfig() Config {
	return Config{
		StateTTL:   10 * time.Minute,
		StateBytes: 32,
	}
}

// LoadConfigFromEnv loads OAuth configuration from environment variables.
//
// Optional:
//   - WAYBILL_OAUTH_STATE_TTL (Go duration)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WAYBILL_OAUTH_STATE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.StateTTL = d
	}

	return cfg, nil
}

// StateManager mints and consumes single-use state nonces.
type StateManager struct {
	cfg   Config
	store cache.Store
	log   *slog.Logger
}

// NewStateManager constructs a StateManager over the given TTL store.
func NewStateManager(cfg Config, store cache.Store, log *slog.Logger) *StateManager {
	if log == nil {
		log = slog.Default()
	}
	return &StateManager{cfg: cfg, store: store, log: log}
}

// Issue mints a fresh state nonce with an absolute expiry.
func (m *StateManager) Issue(ctx context.Context) (string, error) {
	b := make([]byte, m.cfg.StateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	if err := m.store.Set(ctx, stateKeyPrefix+state, []byte{1}, m.cfg.StateTTL); err != nil {
		return "", err
	}
	return state, nil
}

// Consume validates a callback's state nonce and removes it in the same
// store operation, so a replayed redirect always fails.
func (m *StateManager) Consume(ctx context.Context, state string) error {
	if state == "" || len(state) > 1024 {
		return ErrStateInvalid
	}

	_, err := m.store.GetDel(ctx, stateKeyPrefix+state)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			m.log.ErrorContext(ctx, "oauth.state.store_error", "err", err)
		}
		return ErrStateInvalid
	}
	return nil
}
