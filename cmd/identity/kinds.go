package identity

import "errors"

// Error kinds carried inside OpError and friends. The auth API switches on
// these via errors.Is to pick a status code; the strings double as stable
// machine-readable codes.
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
)
