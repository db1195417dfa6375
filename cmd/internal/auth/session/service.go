package session

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Service implements the high-level session operations for Waybill.
//
// It issues sessions, resolves cookie tokens with sliding expiry, promotes
// MFA-pending sessions, and supports per-session and per-user destruction.
type Service struct {
	cfg   Config
	store Store
	log   *slog.Logger
}

// Issued is the result of issuing a session.
// The plain token must be shown to the client exactly once and never logged.
type Issued struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service with the provided configuration and store.
func NewService(cfg Config, store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, log: log}
}

// IdleTimeout reports the configured sliding-expiry window. Transport layers
// use it to align cookie lifetimes with the server-side expiry.
func (s *Service) IdleTimeout() time.Duration {
	return s.cfg.IdleTimeout
}

// Issue creates a new session row in the database and returns the plain token.
//
// Session tokens are opaque random strings and must never be persisted in
// plaintext. Only the hash (hex) is stored in the database.
func (s *Service) Issue(ctx context.Context, now time.Time, userID string, mfaPending bool, dev DeviceContext) (Issued, error) {
	plain, hash, err := newOpaqueSessionToken(s.cfg.TokenBytes)
	if err != nil {
		return Issued{}, err
	}

	expiresAt := now.Add(s.cfg.IdleTimeout)

	sessionID, err := s.store.Create(ctx, now, userID, dev, hash, mfaPending, expiresAt)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID: sessionID,
		Token:     plain,
		ExpiresAt: expiresAt,
	}, nil
}

// Resolve looks up a live session by its plain cookie token and slides its
// expiry forward by the idle timeout.
//
// Fail-closed contract: any store failure is logged and surfaced to the
// caller as ErrSessionNotFound, so an errored lookup can never grant access.
func (s *Service) Resolve(ctx context.Context, now time.Time, tokenPlain string) (Row, error) {
	tokenPlain = strings.TrimSpace(tokenPlain)
	// Basic sanity bounds to avoid pathological inputs.
	if tokenPlain == "" || len(tokenPlain) > 4096 {
		return Row{}, ErrSessionNotFound
	}

	hash := hashSessionTokenHex(tokenPlain)

	row, err := s.store.GetAndTouch(ctx, now, hash, now.Add(s.cfg.IdleTimeout))
	if err != nil {
		if err != ErrSessionNotFound {
			s.log.ErrorContext(ctx, "session.resolve.store_error", "err", err)
		}
		return Row{}, ErrSessionNotFound
	}

	return row, nil
}

// Destroy deletes the session behind a plain cookie token (logout).
func (s *Service) Destroy(ctx context.Context, tokenPlain string) error {
	tokenPlain = strings.TrimSpace(tokenPlain)
	if tokenPlain == "" {
		return nil
	}
	return s.store.Destroy(ctx, hashSessionTokenHex(tokenPlain))
}

// DestroyForUser deletes every session a user owns (e.g., after a password
// reset).
func (s *Service) DestroyForUser(ctx context.Context, userID string) (int64, error) {
	return s.store.DestroyForUser(ctx, userID)
}

// PromoteMFA clears the pending flag on a session whose owner just passed
// the second factor.
func (s *Service) PromoteMFA(ctx context.Context, now time.Time, sessionID string) error {
	return s.store.PromoteMFA(ctx, now, sessionID)
}

// Cleanup removes expired session rows. Expired rows are already invisible
// to Resolve; this keeps the table from growing without bound.
func (s *Service) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.InfoContext(ctx, "session.cleanup", "removed", n)
	}
	return n, nil
}
