package reset

import (
	"context"
	"time"
)

// Row mirrors the waybill.password_reset_tokens row.
type Row struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// RedeemResult reports what an atomic redemption changed.
type RedeemResult struct {
	UserID          string
	SessionsRemoved int64
}

// Store abstracts persistence for reset-token state.
//
// Implementations must make Issue and Redeem atomic. Issue supersedes and
// inserts in one transaction so concurrent issuances can never leave two
// redeemable tokens for a user. In Redeem the used-flag flip, the password
// update, and the session purge happen in one transaction, and the flip is
// a conditional update so that concurrent redemptions of the same token
// have exactly one winner.
type Store interface {
	// Issue marks all the user's unused tokens as used and inserts a fresh
	// row, as one atomic unit, so at most one redeemable token exists per
	// user at any time.
	Issue(ctx context.Context, now time.Time, userID string, tokenHash string, expiresAt time.Time) (id string, err error)

	// Redeem atomically flips the token to used, replaces the user's
	// password hash, and deletes every session the user owns. Unknown,
	// expired, and already-used tokens all return ErrTokenInvalid.
	Redeem(ctx context.Context, now time.Time, tokenHash string, newPasswordHash string) (RedeemResult, error)

	// DeleteExpired removes rows whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
