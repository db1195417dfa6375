package identity

import (
	"context"
	"time"
)

// User is Waybill's canonical security principal.
type User struct {
	ID        string
	Email     string
	EmailNorm string
	FullName  *string
	Role      Role

	CreatedAt time.Time
}

// UserAuth is the credential view needed by the login flow.
// IMPORTANT: PasswordHash is the PHC-formatted argon2id hash; the plain
// password is never stored.
type UserAuth struct {
	User         User
	PasswordHash string
}

// SecurityProfile is the security-question view used by the alternate
// password-reset front. AnswerHash is a normalized-answer digest; the plain
// answer is never stored.
type SecurityProfile struct {
	User       User
	Question   *string
	AnswerHash *string
}

// CreateUserInput describes a user registration request.
type CreateUserInput struct {
	Email    string
	Password string
	FullName *string
	Role     Role

	// Optional security-question enrollment.
	SecurityQuestion *string
	SecurityAnswer   *string

	Now time.Time
}

// CreateUserResult returns the created user.
type CreateUserResult struct {
	User User
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error)

	// GetUserByID resolves a user by primary key. Returns ErrNotFound when
	// the user does not exist.
	GetUserByID(ctx context.Context, userID string) (User, error)

	// GetUserAuthByEmail resolves a user plus password hash by normalized
	// email. Returns ErrNotFound when no account matches.
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// GetSecurityProfileByEmail resolves a user plus security-question
	// enrollment by normalized email. Returns ErrNotFound when no account
	// matches; an account without enrollment returns nil Question/AnswerHash.
	GetSecurityProfileByEmail(ctx context.Context, email string) (SecurityProfile, error)

	// UpdatePassword replaces the stored password hash for a user.
	// Returns ErrNotFound when the user has no credential row.
	UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error
}
