// Package cache provides a small TTL key-value store used for short-lived
// single-use secrets (CSRF tokens, MFA challenges, OAuth state nonces).
//
// The Memory implementation keeps state in process-local memory: it is correct
// for tests and single-instance deployments only. Deployments running more
// than one server process must use the Redis implementation so that every
// instance observes the same secrets. Callers are written against Store and do
// not change when the backend is swapped.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is a TTL key-value store for short-lived secrets.
type Store interface {
	// Set stores value under key for ttl. An existing value is overwritten.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound if absent/expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel atomically returns the value for key and removes it, so that a
	// second GetDel for the same key always returns ErrNotFound. This is the
	// primitive single-use token validation is built on.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Incr atomically increments the counter at key and returns the new
	// value. An absent or expired key starts at zero and gets ttl; an
	// existing counter keeps its remaining ttl. Concurrent callers always
	// observe distinct values, which is what bounded-attempt counting
	// relies on.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
