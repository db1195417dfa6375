// Package session implements Waybill's server-side session architecture.
//
// Sessions are identified by opaque random tokens delivered in an HttpOnly
// cookie and stored hashed in Postgres (HMAC-SHA256 when
// WAYBILL_TOKEN_HMAC_KEY is set; otherwise SHA-256 for dev/back-compat).
// Expiry is sliding: every authenticated read pushes expires_at forward by
// the idle timeout, and the push happens in the same statement as the read
// so concurrent requests cannot observe a half-touched session.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
