// Package mfa implements one-time numeric challenge verification.
//
// A challenge is a 6-digit code bound to a user who already holds a primary
// session; callers must resolve the user from the session store, never from
// request bodies. Challenges live in a TTL key-value store, allow a bounded
// number of attempts, and are compared in constant time.
package mfa
