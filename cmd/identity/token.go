package identity

import (
	"crypto/rand"
	"encoding/hex"

	"waybill/cmd/security/token"
)

// Opaque token hardening:
//
// - identity delegates token hashing to cmd/security/token as the single
//   source of truth; output is always a 64-char hex string.
// - The plain token travels to the client exactly once; the server stores
//   only the hash.
//
// Recommendation (prod):
// - Set WAYBILL_TOKEN_HMAC_KEY to a long random secret (>= 32 bytes).

// NewOpaqueTokenHex returns a cryptographically random hex-encoded token
// suitable for session and password-reset tokens. nBytes defaults to 32,
// giving 256 bits of entropy.
func NewOpaqueTokenHex(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32
	}

	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashTokenSHA256Hex returns a SHA-256 hex hash of the token.
func HashTokenSHA256Hex(tokenStr string) string { return token.HashSHA256Hex(tokenStr) }

// HashOpaqueTokenHex returns the server-stored hash for opaque tokens.
// It uses HMAC-SHA256 if WAYBILL_TOKEN_HMAC_KEY is set; otherwise falls back to SHA-256.
func HashOpaqueTokenHex(tokenStr string) string { return token.HashOpaqueTokenHex(tokenStr) }

// HashSecurityAnswer returns the stored digest for a security-question answer.
// Answers are normalized first so formatting differences do not matter.
func HashSecurityAnswer(answer string) string {
	return token.HashSHA256Hex(NormalizeSecurityAnswer(answer))
}

// VerifySecurityAnswer compares a supplied answer against a stored digest in
// constant time.
func VerifySecurityAnswer(answer, storedDigest string) bool {
	return token.ConstantTimeEqualPadded(HashSecurityAnswer(answer), storedDigest)
}
