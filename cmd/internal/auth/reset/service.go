package reset

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"waybill/cmd/identity"
	"waybill/cmd/security/token"
)

// Directory is the slice of the identity store the reset flows need.
type Directory interface {
	GetSecurityProfileByEmail(ctx context.Context, email string) (identity.SecurityProfile, error)
}

// Mailer dispatches reset tokens out-of-band. Dispatch is best-effort: a
// failure is logged server-side and never changes the client-visible result.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email string, tokenPlain string, expiresAt time.Time) error
}

// NoopMailer drops every message. Useful for dev and tests.
type NoopMailer struct{}

// SendPasswordReset implements Mailer.
func (NoopMailer) SendPasswordReset(context.Context, string, string, time.Time) error { return nil }

// Service implements the password-reset operations for Waybill.
//
// Two issuance fronts (emailed link, security-question check) share one
// token model and one redemption path.
type Service struct {
	cfg    Config
	store  Store
	dir    Directory
	mailer Mailer
	log    *slog.Logger
}

// NewService constructs a Service. A nil mailer falls back to NoopMailer.
func NewService(cfg Config, store Store, dir Directory, mailer Mailer, log *slog.Logger) *Service {
	if mailer == nil {
		mailer = NoopMailer{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, store: store, dir: dir, mailer: mailer, log: log}
}

// Issued describes a freshly issued reset token.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

// Request handles the emailed-link front.
//
// It always completes with a generic acknowledgment: unknown accounts,
// dispatch failures, and store failures all look identical to the caller.
// For a known account it invalidates prior unused tokens, stores the hash of
// a fresh one, and hands the plain token to the mailer.
func (s *Service) Request(ctx context.Context, now time.Time, email string) {
	prof, err := s.dir.GetSecurityProfileByEmail(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) {
			s.log.ErrorContext(ctx, "reset.request.lookup_error", "err", err)
		}
		return
	}

	issued, err := s.issue(ctx, now, prof.User.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "reset.request.issue_error", "err", err)
		return
	}

	if err := s.mailer.SendPasswordReset(ctx, prof.User.Email, issued.Token, issued.ExpiresAt); err != nil {
		// Best-effort dispatch. The response has already been decided.
		s.log.ErrorContext(ctx, "reset.request.mail_error", "err", err)
	}
}

// RequestWithAnswer handles the security-question front.
//
// A correct answer yields a reset token directly. Unknown accounts, missing
// enrollment, and wrong answers all return ErrAnswerRejected so none of
// them can be told apart. Restricted roles are the one deliberate
// exception: policy discloses that those accounts must contact an
// administrator instead of self-serving a reset.
func (s *Service) RequestWithAnswer(ctx context.Context, now time.Time, email, answer string) (Issued, error) {
	prof, err := s.dir.GetSecurityProfileByEmail(ctx, email)
	if err != nil {
		if !identity.IsNotFound(err) {
			s.log.ErrorContext(ctx, "reset.answer.lookup_error", "err", err)
		}
		return Issued{}, ErrAnswerRejected
	}

	if prof.User.Role == identity.RoleAdmin {
		return Issued{}, ErrContactAdministrator
	}

	if prof.AnswerHash == nil {
		return Issued{}, ErrAnswerRejected
	}
	if !identity.VerifySecurityAnswer(answer, *prof.AnswerHash) {
		return Issued{}, ErrAnswerRejected
	}

	issued, err := s.issue(ctx, now, prof.User.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "reset.answer.issue_error", "err", err)
		return Issued{}, ErrAnswerRejected
	}

	return issued, nil
}

// Redeem validates the replacement password, then runs the atomic
// redemption: used flip, password update, session purge.
//
// Password-policy failures are reported as ErrWeakPassword before the token
// is even looked at, so a weak password never burns a live token.
func (s *Service) Redeem(ctx context.Context, now time.Time, tokenPlain, newPassword string) (RedeemResult, error) {
	tokenPlain = strings.TrimSpace(tokenPlain)
	if tokenPlain == "" || len(tokenPlain) > 4096 {
		return RedeemResult{}, ErrTokenInvalid
	}

	newHash, err := identity.HashPassword(newPassword)
	if err != nil {
		return RedeemResult{}, ErrWeakPassword
	}

	res, err := s.store.Redeem(ctx, now, token.HashOpaqueTokenHex(tokenPlain), newHash)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return RedeemResult{}, ErrTokenInvalid
		}
		s.log.ErrorContext(ctx, "reset.redeem.store_error", "err", err)
		return RedeemResult{}, ErrTokenInvalid
	}

	s.log.InfoContext(ctx, "reset.redeem.ok",
		"user_id", res.UserID,
		"sessions_removed", res.SessionsRemoved,
	)
	return res, nil
}

// Cleanup removes expired token rows.
func (s *Service) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}

func (s *Service) issue(ctx context.Context, now time.Time, userID string) (Issued, error) {
	plain, hash, err := newOpaqueResetToken(s.cfg.TokenBytes)
	if err != nil {
		return Issued{}, err
	}

	expiresAt := now.Add(s.cfg.TokenTTL)
	if _, err := s.store.Issue(ctx, now, userID, hash, expiresAt); err != nil {
		return Issued{}, err
	}

	return Issued{Token: plain, ExpiresAt: expiresAt}, nil
}

func newOpaqueResetToken(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding: the token travels inside an emailed link.
	plain = base64.RawURLEncoding.EncodeToString(b)

	hashHex = token.HashOpaqueTokenHex(plain) // 64 hex chars

	return plain, hashHex, nil
}
