// Package identity implements Waybill's identity foundation.
//
// It contains the user/credential model (roles, password hashes, security
// questions), ULID identifiers, and the Postgres-backed store consumed by the
// auth HTTP layer and the credential-lifecycle services.
//
// This package is intentionally dependency-light and security-first.
package identity
