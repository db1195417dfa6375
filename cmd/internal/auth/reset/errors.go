package reset

import "errors"

var (
	// ErrTokenInvalid is returned when a presented token is unknown, expired,
	// or already used. The three causes are deliberately indistinguishable.
	ErrTokenInvalid = errors.New("invalid or expired token")

	// ErrWeakPassword is returned when the replacement password fails policy.
	ErrWeakPassword = errors.New("weak password")

	// ErrAnswerRejected is returned by the security-question front when the
	// account is unknown, has no enrollment, or the answer does not match.
	// One message for all three causes prevents account enumeration.
	ErrAnswerRejected = errors.New("answer rejected")

	// ErrContactAdministrator is returned when policy forbids self-service
	// reset for the account's role. This branch intentionally discloses that
	// the account is restricted.
	ErrContactAdministrator = errors.New("contact an administrator to reset this account")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
