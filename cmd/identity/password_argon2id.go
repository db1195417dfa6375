package identity

import (
	"waybill/cmd/security/password"
)

// Password hashing delegates to cmd/security/password, which owns the
// argon2id parameters and the password policy. Every account role uses the
// same policy so an attacker cannot fingerprint roles from validation errors.

// HashPassword validates plain against the uniform policy and returns a
// PHC-formatted argon2id hash.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		cfg = password.DefaultConfig()
	}
	return cfg.Hash(plain)
}

// VerifyPassword reports whether plain matches the stored PHC hash.
// Malformed hashes verify as false rather than erroring, so callers stay on
// the same code path for "wrong password" and "corrupt credential".
func VerifyPassword(plain, encodedHash string) bool {
	cfg, err := password.FromEnv()
	if err != nil {
		cfg = password.DefaultConfig()
	}
	ok, err := cfg.Verify(encodedHash, plain)
	if err != nil {
		return false
	}
	return ok
}
