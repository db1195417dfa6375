package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (waybill.sessions).
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the session store (default "waybill").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("session: empty schema")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "waybill"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) sessions() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

// Create inserts a new session row and returns its ULID.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, userID string, dev DeviceContext, tokenHash string, mfaPending bool, expiresAt time.Time) (string, error) {
	id := ulid.Make().String()

	var ip net.IP
	if dev.IP != nil {
		ip = dev.IP
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.sessions()+` (
			id, user_id, token_hash, mfa_pending,
			created_at, last_accessed_at, expires_at,
			user_agent, ip
		) VALUES (
			$1, $2, $3, $4,
			$5, $5, $6,
			$7, $8
		)
	`, id, userID, tokenHash, mfaPending, now, expiresAt, nullIfEmpty(dev.UserAgent), ip)
	if err != nil {
		return "", err
	}

	return id, nil
}

// GetAndTouch loads a live session by token hash and pushes its expiry in the
// same statement. The WHERE clause filters out expired rows, so an expired
// session is indistinguishable from a missing one and is never revived.
func (s *PostgresStore) GetAndTouch(ctx context.Context, now time.Time, tokenHash string, newExpiry time.Time) (Row, error) {
	var row Row

	err := s.pool.QueryRow(ctx, `
		UPDATE `+s.sessions()+`
		SET last_accessed_at = $2,
		    expires_at = $3
		WHERE token_hash = $1
		  AND expires_at > $2
		RETURNING id, user_id, token_hash, mfa_pending,
		          created_at, last_accessed_at, expires_at, user_agent
	`, tokenHash, now, newExpiry).Scan(
		&row.ID,
		&row.UserID,
		&row.TokenHash,
		&row.MFAPending,
		&row.CreatedAt,
		&row.LastAccessedAt,
		&row.ExpiresAt,
		&row.UserAgent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Drop the stale row eagerly instead of leaving it to the sweep, so
		// an expired session stops existing at the moment it is observed.
		_, _ = s.pool.Exec(ctx, `
			DELETE FROM `+s.sessions()+`
			WHERE token_hash = $1
			  AND expires_at <= $2
		`, tokenHash, now)
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	return row, nil
}

// Destroy deletes a session by token hash (idempotent).
func (s *PostgresStore) Destroy(ctx context.Context, tokenHash string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.sessions()+`
		WHERE token_hash = $1
	`, tokenHash)
	return err
}

// DestroyForUser deletes every session belonging to a user.
func (s *PostgresStore) DestroyForUser(ctx context.Context, userID string) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.sessions()+`
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// PromoteMFA clears the mfa_pending flag for a live session.
func (s *PostgresStore) PromoteMFA(ctx context.Context, now time.Time, sessionID string) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.sessions()+`
		SET mfa_pending = FALSE
		WHERE id = $1
		  AND expires_at > $2
	`, sessionID, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes rows whose expiry is at or before now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.sessions()+`
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
