package mfa

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"time"

	"waybill/cmd/internal/cache"
	"waybill/cmd/security/token"
)

const keyPrefix = "mfa:"

// Code range is fixed-width so every code is exactly six digits.
const (
	codeMin  = 100000
	codeSpan = 900000
)

// Config defines runtime configuration for the MFA subsystem.
type Config struct {
	// ChallengeTTL bounds how long an initiated challenge can be verified.
	ChallengeTTL time.Duration

	// MaxAttempts is the number of verify calls allowed per challenge.
	MaxAttempts int
}

// DefaultConfig returns secure defaults.
func DefaultConfig() Config {
	return Config{
		ChallengeTTL: 5 * time.Minute,
		MaxAttempts:  5,
	}
}

// LoadConfigFromEnv loads MFA configuration from environment variables.
//
// Optional:
//   - WAYBILL_MFA_CHALLENGE_TTL (Go duration)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("WAYBILL_MFA_CHALLENGE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.ChallengeTTL = d
	}

	return cfg, nil
}

// challenge is the stored per-user state. Exactly one exists per user;
// Initiate overwrites any prior one. The attempt counter lives in a
// sibling key so it can be incremented atomically.
type challenge struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service issues and verifies one-time codes.
type Service struct {
	cfg   Config
	store cache.Store
	log   *slog.Logger
}

// NewService constructs a Service over the given TTL store.
func NewService(cfg Config, store cache.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, log: log}
}

// Initiate creates a fresh challenge for the user, replacing any prior one.
// The code is returned so the transport layer can dispatch it (and expose it
// as devCode outside production).
func (s *Service) Initiate(ctx context.Context, now time.Time, userID string) (code string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", err
	}
	code = fmt.Sprintf("%06d", n.Int64()+codeMin)

	ch := challenge{
		Code:      code,
		ExpiresAt: now.Add(s.cfg.ChallengeTTL),
	}
	if err := s.put(ctx, now, userID, ch); err != nil {
		return "", err
	}
	// A fresh challenge starts from zero attempts.
	if err := s.store.Delete(ctx, attemptsKey(userID)); err != nil {
		s.log.ErrorContext(ctx, "mfa.initiate.store_error", "err", err)
	}

	s.log.InfoContext(ctx, "mfa.initiate", "user_id", userID)
	return code, nil
}

// Verify checks a supplied code against the user's active challenge.
//
// Each call consumes an attempt through an atomic store increment before
// the comparison runs, so a crashed request still costs an attempt and
// racing calls can never share one. The comparison itself is constant-time
// over padded operands, and every failure mode maps to ErrCodeInvalid.
func (s *Service) Verify(ctx context.Context, now time.Time, userID, supplied string) error {
	raw, err := s.store.Get(ctx, keyPrefix+userID)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			s.log.ErrorContext(ctx, "mfa.verify.store_error", "err", err)
		}
		return ErrCodeInvalid
	}

	var ch challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		s.drop(ctx, userID)
		return ErrCodeInvalid
	}

	if !ch.ExpiresAt.After(now) {
		s.drop(ctx, userID)
		return ErrCodeInvalid
	}

	attempts, err := s.store.Incr(ctx, attemptsKey(userID), ch.ExpiresAt.Sub(now))
	if err != nil {
		s.log.ErrorContext(ctx, "mfa.verify.store_error", "err", err)
		return ErrCodeInvalid
	}
	if attempts > int64(s.cfg.MaxAttempts) {
		s.drop(ctx, userID)
		return ErrCodeInvalid
	}

	if !token.ConstantTimeEqualPadded(ch.Code, supplied) {
		return ErrCodeInvalid
	}

	s.drop(ctx, userID)
	s.log.InfoContext(ctx, "mfa.verify.ok", "user_id", userID)
	return nil
}

func (s *Service) put(ctx context.Context, now time.Time, userID string, ch challenge) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	ttl := ch.ExpiresAt.Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.store.Set(ctx, keyPrefix+userID, raw, ttl)
}

func (s *Service) drop(ctx context.Context, userID string) {
	if err := s.store.Delete(ctx, keyPrefix+userID); err != nil {
		s.log.ErrorContext(ctx, "mfa.delete.store_error", "err", err)
	}
	if err := s.store.Delete(ctx, attemptsKey(userID)); err != nil {
		s.log.ErrorContext(ctx, "mfa.delete.store_error", "err", err)
	}
}

func attemptsKey(userID string) string {
	return keyPrefix + userID + ":attempts"
}
