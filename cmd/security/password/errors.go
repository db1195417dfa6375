package password

import "errors"

// Stable sentinels. The auth API maps policy failures onto one generic
// rejection, so the distinctions below exist for logs and tests only.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidHash      = errors.New("invalid password hash")
)
