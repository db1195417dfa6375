package session

import "errors"

var (
	// ErrSessionNotFound is returned when a token does not match any live
	// session. Expired and missing sessions are deliberately indistinguishable
	// to callers.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
