// Package reset implements Waybill's password-reset token lifecycle.
//
// One PasswordResetToken model serves two issuance fronts: an emailed link
// and a security-question check. Tokens are stored hashed, expire after a
// short TTL, and are strictly single-use. Redemption flips the used flag,
// replaces the password hash, and destroys every session the user owns as
// one atomic unit, so a redeemed token can never leave old sessions alive
// against a new password.
package reset
