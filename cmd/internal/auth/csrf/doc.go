// Package csrf issues and validates single-use anti-forgery tokens for
// state-changing requests.
//
// Tokens live in a TTL key-value store (process-local memory by default,
// Redis when configured for multi-instance deployments). Validation removes
// the token in the same store operation that reads it, so a token can never
// validate twice even under concurrent attempts.
package csrf
