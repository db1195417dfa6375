package mfa

import "errors"

var (
	// ErrCodeInvalid is returned for every verification failure: no active
	// challenge, expired challenge, exhausted attempts, or wrong code. One
	// message for all causes keeps the endpoint oracle-free.
	ErrCodeInvalid = errors.New("invalid code")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
