package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeSecurityAnswer canonicalizes a security-question answer before
// hashing: trimmed, lower-cased, internal whitespace collapsed. The same
// canonical form is used at enrollment and at verification so superficial
// formatting differences do not lock users out.
func NormalizeSecurityAnswer(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
