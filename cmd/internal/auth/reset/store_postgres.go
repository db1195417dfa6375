package reset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL
// (waybill.password_reset_tokens plus the credential and session tables it
// must mutate atomically).
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the reset store (default "waybill").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("reset: empty schema")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed reset store.
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
		return nil, fmt.Errorf("reset: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) ident(table string) string {
	return pgx.Identifier{s.schema, table}.Sanitize()
}

// Issue supersedes the user's unused tokens and inserts the new row in one
// transaction, so a concurrent Issue for the same user can never commit two
// redeemable tokens. Returns the new row's ULID.
func (s *PostgresStore) Issue(ctx context.Context, now time.Time, userID string, tokenHash string, expiresAt time.Time) (string, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Per-user advisory lock held until commit. Without it two transactions
	// could each supersede-then-insert without seeing the other's row.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return "", err
	}

	_, err = tx.Exec(ctx, `
		UPDATE `+s.ident("password_reset_tokens")+`
		SET used = TRUE
		WHERE user_id = $1
		  AND NOT used
	`, userID)
	if err != nil {
		return "", err
	}

	id := ulid.Make().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO `+s.ident("password_reset_tokens")+` (
			id, user_id, token_hash, created_at, expires_at, used
		) VALUES ($1, $2, $3, $4, $5, FALSE)
	`, id, userID, tokenHash, now, expiresAt)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}

	return id, nil
}

// Redeem performs the three-way atomic redemption.
//
// The used flip is a conditional UPDATE (WHERE NOT used AND unexpired), so
// under concurrent redemptions of the same token exactly one transaction
// sees a row and every loser observes ErrTokenInvalid.
func (s *PostgresStore) Redeem(ctx context.Context, now time.Time, tokenHash string, newPasswordHash string) (RedeemResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return RedeemResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	err = tx.QueryRow(ctx, `
		UPDATE `+s.ident("password_reset_tokens")+`
		SET used = TRUE
		WHERE token_hash = $1
		  AND NOT used
		  AND expires_at > $2
		RETURNING user_id
	`, tokenHash, now).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return RedeemResult{}, ErrTokenInvalid
	}
	if err != nil {
		return RedeemResult{}, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE `+s.ident("user_credentials")+`
		SET password_hash = $1,
		    updated_at = $2
		WHERE user_id = $3
	`, newPasswordHash, now, userID)
	if err != nil {
		return RedeemResult{}, err
	}
	if ct.RowsAffected() == 0 {
		// Token without a credential row means broken referential state.
		// Roll back rather than leave the token burned for nothing.
		return RedeemResult{}, fmt.Errorf("reset: no credential row for user %s", userID)
	}

	sess, err := tx.Exec(ctx, `
		DELETE FROM `+s.ident("sessions")+`
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return RedeemResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RedeemResult{}, err
	}

	return RedeemResult{UserID: userID, SessionsRemoved: sess.RowsAffected()}, nil
}

// DeleteExpired removes rows whose expiry is at or before now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.ident("password_reset_tokens")+`
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
