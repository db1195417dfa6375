package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements identity persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "waybill").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "waybill",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// CreateUser creates a new user and its credentials transactionally.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return CreateUserResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return CreateUserResult{}, err
	}

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return CreateUserResult{}, pgInvalid(op, "email is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		return CreateUserResult{}, pgInvalid(op, "password is required")
	}

	role, ok := ParseRole(string(in.Role))
	if !ok {
		return CreateUserResult{}, pgInvalid(op, "unknown role")
	}

	// Security-question enrollment is all-or-nothing.
	question := pgTrimPtr(in.SecurityQuestion)
	answer := pgTrimPtr(in.SecurityAnswer)
	if (question == nil) != (answer == nil) {
		return CreateUserResult{}, pgInvalid(op, "security question and answer must be provided together")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	emailNorm := NormalizeEmail(email)

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		return CreateUserResult{}, pgInvalid(op, err.Error())
	}

	var answerHash *string
	if answer != nil {
		h := HashSecurityAnswer(*answer)
		answerHash = &h
	}

	userID, err := NewULID(now)
	if err != nil {
		return CreateUserResult{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return CreateUserResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	_, err = tx.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, email, email_norm, full_name, role, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		userID,
		email,
		emailNorm,
		pgTrimPtr(in.FullName),
		string(role),
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return CreateUserResult{}, ConflictError{Op: op, Field: field}
		}
		return CreateUserResult{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+creds+` (
		     user_id, password_hash, security_question, security_answer_hash, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $5)`,
		userID, pwHash, question, answerHash, now,
	)
	if err != nil {
		// If FK fails here, it indicates programming/schema inconsistency.
		return CreateUserResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateUserResult{}, err
	}

	out := User{
		ID:        userID,
		Email:     email,
		EmailNorm: emailNorm,
		FullName:  pgTrimPtr(in.FullName),
		Role:      role,
		CreatedAt: now,
	}

	return CreateUserResult{User: out}, nil
}

// GetUserByID resolves a user by primary key.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, pgInvalid(op, "missing user_id")
	}

	users := pgIdent(s.schema, "users")

	var (
		out     User
		roleRaw string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, email_norm, full_name, role, created_at
		   FROM `+users+`
		  WHERE id = $1`,
		userID,
	).Scan(&out.ID, &out.Email, &out.EmailNorm, &out.FullName, &roleRaw, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}

	role, ok := ParseRole(roleRaw)
	if !ok {
		return User{}, fmt.Errorf("%s: stored role %q is not recognized", op, roleRaw)
	}
	out.Role = role

	return out, nil
}

// GetUserAuthByEmail resolves a user plus password hash by normalized email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	if s == nil || s.pool == nil {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}
	emailNorm := NormalizeEmail(email)
	if emailNorm == "" {
		return UserAuth{}, pgInvalid(op, "missing email")
	}

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	var (
		out     UserAuth
		roleRaw string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.email_norm, u.full_name, u.role, u.created_at, c.password_hash
		   FROM `+users+` u
		   JOIN `+creds+` c ON c.user_id = u.id
		  WHERE u.email_norm = $1`,
		emailNorm,
	).Scan(
		&out.User.ID,
		&out.User.Email,
		&out.User.EmailNorm,
		&out.User.FullName,
		&roleRaw,
		&out.User.CreatedAt,
		&out.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, err
	}

	role, ok := ParseRole(roleRaw)
	if !ok {
		return UserAuth{}, fmt.Errorf("%s: stored role %q is not recognized", op, roleRaw)
	}
	out.User.Role = role

	return out, nil
}

// GetSecurityProfileByEmail resolves a user plus security-question enrollment
// by normalized email.
func (s *PostgresStore) GetSecurityProfileByEmail(ctx context.Context, email string) (SecurityProfile, error) {
	const op = "identity.GetSecurityProfileByEmail"

	if s == nil || s.pool == nil {
		return SecurityProfile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return SecurityProfile{}, err
	}
	emailNorm := NormalizeEmail(email)
	if emailNorm == "" {
		return SecurityProfile{}, pgInvalid(op, "missing email")
	}

	users := pgIdent(s.schema, "users")
	creds := pgIdent(s.schema, "user_credentials")

	var (
		out     SecurityProfile
		roleRaw string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.email_norm, u.full_name, u.role, u.created_at,
		        c.security_question, c.security_answer_hash
		   FROM `+users+` u
		   JOIN `+creds+` c ON c.user_id = u.id
		  WHERE u.email_norm = $1`,
		emailNorm,
	).Scan(
		&out.User.ID,
		&out.User.Email,
		&out.User.EmailNorm,
		&out.User.FullName,
		&roleRaw,
		&out.User.CreatedAt,
		&out.Question,
		&out.AnswerHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SecurityProfile{}, NotFoundError{Op: op, Resource: "user"}
		}
		return SecurityProfile{}, err
	}

	role, ok := ParseRole(roleRaw)
	if !ok {
		return SecurityProfile{}, fmt.Errorf("%s: stored role %q is not recognized", op, roleRaw)
	}
	out.User.Role = role

	return out, nil
}

// UpdatePassword replaces the stored password hash for a user.
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error {
	const op = "identity.UpdatePassword"

	if s == nil || s.pool == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return pgInvalid(op, "missing user_id")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return pgInvalid(op, "missing password_hash")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	creds := pgIdent(s.schema, "user_credentials")

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+creds+`
		    SET password_hash = $1,
		        updated_at = $2
		  WHERE user_id = $3`,
		passwordHash, now, userID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return NotFoundError{Op: op, Resource: "user_credentials"}
	}
	return nil
}

// ---- helpers ----

// pgTrimPtr trims a string pointer, returning nil if result is empty.
func pgTrimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to heuristic substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_email_norm":
		return "email", true
	case "uq_sessions_token_hash":
		return "session_token", true
	default:
		switch {
		case strings.Contains(c, "email"):
			return "email", true
		case strings.Contains(c, "token"):
			return "session_token", true
		default:
			return "unique", true
		}
	}
}
