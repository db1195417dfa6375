package token

import "errors"

// Key-policy sentinels, surfaced at startup by the security config check
// when HMAC token hashing is required.
var (
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
)
