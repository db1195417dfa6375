package app

import (
	"errors"

	"waybill/cmd/security/token"
)

// ValidateSecurityConfig enforces the security policy at startup.
//
// Fail-fast is intentional: session and reset tokens are stored as keyed
// hashes, and a deployment that asks for HMAC must not come up without the
// key. Enforcement goes through the same module that performs the hashing.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// Minimum 32 bytes for an HMAC-SHA256 secret; measured in bytes because
	// the key is used as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: WAYBILL_REQUIRE_TOKEN_HMAC=true but WAYBILL_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: WAYBILL_REQUIRE_TOKEN_HMAC=true but WAYBILL_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: WAYBILL_REQUIRE_TOKEN_HMAC=true but token hasher is not in HMAC mode")
	}

	return nil
}
