package session

import (
	"crypto/rand"
	"encoding/base64"

	"waybill/cmd/security/token"
)

func newOpaqueSessionToken(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding.
	plain = base64.RawURLEncoding.EncodeToString(b)

	hashHex = token.HashOpaqueTokenHex(plain) // 64 hex chars

	return plain, hashHex, nil
}

func hashSessionTokenHex(plain string) string {
	return token.HashOpaqueTokenHex(plain)
}
