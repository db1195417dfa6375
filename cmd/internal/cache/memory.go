package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store implementation.
//
// Expired entries are dropped lazily on access and opportunistically during
// writes, so no background goroutine is needed.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Set stores value under key for ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Opportunistic sweep keeps the map from accumulating dead entries
	// between accesses of unrelated keys.
	for k, e := range m.entries {
		if !e.expiresAt.After(now) {
			delete(m.entries, k)
		}
	}

	v := make([]byte, len(value))
	copy(v, value)
	m.entries[key] = memoryEntry{value: v, expiresAt: now.Add(ttl)}
	return nil
}

// Get returns the value for key, or ErrNotFound if absent/expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.After(time.Now()) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}

	v := make([]byte, len(e.value))
	copy(v, e.value)
	return v, nil
}

// GetDel atomically returns and removes the value for key.
// The removal happens under the same lock as the lookup, so concurrent
// callers can never both succeed for one key.
func (m *Memory) GetDel(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.entries, key)
	if !e.expiresAt.After(time.Now()) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Incr atomically increments the counter at key under the store lock, so
// concurrent callers always receive distinct values.
func (m *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || !e.expiresAt.After(now) {
		m.entries[key] = memoryEntry{value: []byte("1"), expiresAt: now.Add(ttl)}
		return 1, nil
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache: incr on non-counter value at %q", key)
	}
	n++
	m.entries[key] = memoryEntry{value: strconv.AppendInt(nil, n, 10), expiresAt: e.expiresAt}
	return n, nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
