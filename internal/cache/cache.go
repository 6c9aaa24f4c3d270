// Package cache stores serialised snapshots for a bounded time, in process or
// in Redis.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache is a byte-valued TTL cache.
type Cache interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// New returns a Redis cache when url is set, otherwise an in-memory one.
func New(ctx context.Context, url string) (Cache, error) {
	if url == "" {
		return NewMemory(), nil
	}
	return NewRedis(ctx, url)
}

type item struct {
	value   []byte
	expires time.Time
}

// Memory is a process-local cache. Expired items are dropped on Get and
// swept on every Set.
type Memory struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]item), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && !m.now().Before(it.expires) {
		delete(m.items, key)
		return nil, false, nil
	}
	return it.value, true, nil
}

// Set stores value; a non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.items[key] = it
	return nil
}

func (m *Memory) Close() error { return nil }

// sweep drops expired items. Callers hold mu.
func (m *Memory) sweep() {
	now := m.now()
	for k, it := range m.items {
		if !it.expires.IsZero() && !now.Before(it.expires) {
			delete(m.items, k)
		}
	}
}
