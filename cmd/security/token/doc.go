// Package token provides token hashing and comparison primitives for Waybill.
//
// It is the single source of truth for how opaque secrets (session tokens,
// password-reset tokens) are hashed for server-side storage and how secret
// material is compared.
//
// Design goals:
// - Default dev/back-compat mode: SHA-256(token) when no HMAC key is configured.
// - Production-enforced mode: HMAC-SHA256(token, key) when policy requires it.
// - Stable 64-char hex output for storage.
// - One explicit constant-time comparison primitive, so ad hoc short-circuiting
//   comparisons cannot creep back in during refactors.
//
// Environment:
// - WAYBILL_TOKEN_HMAC_KEY: when set, enables HMAC mode.
// Policy:
//   - If RequireTokenHMAC=true, callers MUST enforce a minimum key size (>= 32 bytes)
//     and MUST use HMAC (no SHA fallback).
package token
