package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are opt-in and require WAYBILL_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_GetAndTouch_SlidesExpiry(t *testing.T) {
	t.Parallel()

	pool, schema := mustOpenSessionTestSchema(t)
	store := mustNewSessionStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Microsecond)
	userID := mustInsertTestUser(t, pool, schema)

	_, hash := mustNewTestToken(t)
	if _, err := store.Create(ctx, now, userID, DeviceContext{}, hash, false, now.Add(time.Hour)); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := now.Add(30 * time.Minute)
	row, err := store.GetAndTouch(ctx, later, hash, later.Add(time.Hour))
	if err != nil {
		t.Fatalf("get and touch: %v", err)
	}
	if !row.ExpiresAt.Equal(later.Add(time.Hour)) {
		t.Fatalf("expected slid expiry %v, got %v", later.Add(time.Hour), row.ExpiresAt)
	}
	if !row.LastAccessedAt.Equal(later) {
		t.Fatalf("expected last_accessed_at %v, got %v", later, row.LastAccessedAt)
	}
}

func TestPostgresStore_GetAndTouch_ExpiredRowIsNotRevived(t *testing.T) {
	t.Parallel()

	pool, schema := mustOpenSessionTestSchema(t)
	store := mustNewSessionStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	now := time.Now().UTC()
	userID := mustInsertTestUser(t, pool, schema)

	_, hash := mustNewTestToken(t)
	if _, err := store.Create(ctx, now.Add(-2*time.Hour), userID, DeviceContext{}, hash, false, now.Add(-time.Hour)); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := store.GetAndTouch(ctx, now, hash, now.Add(time.Hour))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for expired row, got %v", err)
	}

	// A second read must agree: the failed touch did not extend anything.
	_, err = store.GetAndTouch(ctx, now, hash, now.Add(time.Hour))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on repeat, got %v", err)
	}
}

func TestPostgresStore_DestroyForUser_AndDeleteExpired(t *testing.T) {
	t.Parallel()

	pool, schema := mustOpenSessionTestSchema(t)
	store := mustNewSessionStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	now := time.Now().UTC()
	u1 := mustInsertTestUser(t, pool, schema)
	u2 := mustInsertTestUser(t, pool, schema)

	_, h1 := mustNewTestToken(t)
	_, h2 := mustNewTestToken(t)
	_, h3 := mustNewTestToken(t)

	if _, err := store.Create(ctx, now, u1, DeviceContext{}, h1, false, now.Add(time.Hour)); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	if _, err := store.Create(ctx, now, u1, DeviceContext{}, h2, false, now.Add(time.Hour)); err != nil {
		t.Fatalf("create 2: %v", err)
	}
	if _, err := store.Create(ctx, now.Add(-2*time.Hour), u2, DeviceContext{}, h3, false, now.Add(-time.Hour)); err != nil {
		t.Fatalf("create 3: %v", err)
	}

	n, err := store.DestroyForUser(ctx, u1)
	if err != nil {
		t.Fatalf("destroy for user: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows destroyed, got %d", n)
	}

	n, err = store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired row removed, got %d", n)
	}
}

func TestPostgresStore_PromoteMFA(t *testing.T) {
	t.Parallel()

	pool, schema := mustOpenSessionTestSchema(t)
	store := mustNewSessionStore(t, pool, schema)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	now := time.Now().UTC()
	userID := mustInsertTestUser(t, pool, schema)

	_, hash := mustNewTestToken(t)
	id, err := store.Create(ctx, now, userID, DeviceContext{UserAgent: "waybill-test/1.0", IP: net.ParseIP("127.0.0.1")}, hash, true, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.PromoteMFA(ctx, now, id); err != nil {
		t.Fatalf("promote: %v", err)
	}

	row, err := store.GetAndTouch(ctx, now, hash, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("get and touch: %v", err)
	}
	if row.MFAPending {
		t.Fatalf("expected promoted session")
	}

	if err := store.PromoteMFA(ctx, now, "00000000000000000000000000"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for unknown session, got %v", err)
	}
}

// ---- helpers ----

func mustNewSessionStore(t *testing.T, pool *pgxpool.Pool, schema string) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func mustNewTestToken(t *testing.T) (plain, hash string) {
	t.Helper()
	plain, hash, err := newOpaqueSessionToken(32)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	return plain, hash
}

func mustInsertTestUser(t *testing.T, pool *pgxpool.Pool, schema string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := ulid.Make().String()
	users := pgx.Identifier{schema, "users"}.Sanitize()
	_, err := pool.Exec(ctx,
		`INSERT INTO `+users+` (id, email, email_norm, role, created_at)
		 VALUES ($1, $2, $2, 'customer', now())`,
		id, strings.ToLower(id)+"@example.com",
	)
	if err != nil {
		t.Fatalf("insert test user: %v", err)
	}
	return id
}

func mustOpenSessionTestSchema(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("WAYBILL_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: WAYBILL_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse WAYBILL_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		if sessionShouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (WAYBILL_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	schema := "waybill_it_" + strings.ToLower(ulid.Make().String())
	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dcancel()
		_, _ = pool.Exec(dctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	mustApplySessionSchema(t, pool, schema)
	return pool, schema
}

func mustApplySessionSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	users := pgx.Identifier{schema, "users"}.Sanitize()
	sessions := pgx.Identifier{schema, "sessions"}.Sanitize()

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  email_norm TEXT NOT NULL,
  full_name TEXT NULL,
  role TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT uq_users_email_norm UNIQUE (email_norm)
);

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  token_hash TEXT NOT NULL,
  mfa_pending BOOLEAN NOT NULL DEFAULT FALSE,

  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at TIMESTAMPTZ NOT NULL,

  user_agent TEXT NULL,
  ip INET NULL,

  CONSTRAINT chk_sessions_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_sessions_token_hash_len CHECK (char_length(token_hash) = 64),
  CONSTRAINT uq_sessions_token_hash UNIQUE (token_hash)
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON %s (user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON %s (expires_at);
`, users, sessions, users, sessions, sessions)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func sessionShouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}
