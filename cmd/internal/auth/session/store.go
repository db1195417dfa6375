package session

import (
	"context"
	"net"
	"time"
)

// DeviceContext describes the client that owns a session.
type DeviceContext struct {
	UserAgent string
	IP        net.IP
}

// Row mirrors the waybill.sessions row used by the session subsystem.
type Row struct {
	ID        string
	UserID    string
	TokenHash string

	// MFAPending marks a session created after a correct password but before
	// the second factor is verified. Pending sessions carry no authority
	// beyond the MFA verification endpoints.
	MFAPending bool

	CreatedAt      time.Time
	LastAccessedAt time.Time
	ExpiresAt      time.Time

	UserAgent *string
}

// Store abstracts persistence for session state.
//
// Implementations must make GetAndTouch atomic: the live-session check and
// the expiry push have to happen in one statement so concurrent reads of the
// same token never race.
type Store interface {
	// Create inserts a new session row.
	Create(
		ctx context.Context,
		now time.Time,
		userID string,
		dev DeviceContext,
		tokenHash string,
		mfaPending bool,
		expiresAt time.Time,
	) (sessionID string, err error)

	// GetAndTouch loads a live session by token hash and, in the same
	// statement, pushes its expiry to newExpiry and last_accessed_at to now.
	// Expired or missing sessions return ErrSessionNotFound.
	GetAndTouch(ctx context.Context, now time.Time, tokenHash string, newExpiry time.Time) (Row, error)

	// Destroy deletes a session by token hash (idempotent).
	Destroy(ctx context.Context, tokenHash string) error

	// DestroyForUser deletes every session belonging to a user and reports
	// how many rows were removed.
	DestroyForUser(ctx context.Context, userID string) (int64, error)

	// PromoteMFA clears the mfa_pending flag for a live session.
	PromoteMFA(ctx context.Context, now time.Time, sessionID string) error

	// DeleteExpired removes rows whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
