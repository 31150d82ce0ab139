package cache

import (
	"context"
	"sync"
	"time"

	"github.com/loticredit/loticredit/internal/metrics"
)

// MemoryCache is an in-process Cache for demo/development mode and tests.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	sets    int
	now     func() time.Time
}

// sweepEvery is how many Sets pass between sweeps of expired entries.
const sweepEvery = 256

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	now := m.now()
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if ok && e.expired(now) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if cur, still := m.entries[key]; still && cur.expired(now) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		ok = false
	}
	if !ok {
		metrics.CacheRequestsTotal.WithLabelValues("memory", "miss").Inc()
		return "", ErrMiss
	}
	metrics.CacheRequestsTotal.WithLabelValues("memory", "hit").Inc()
	return e.value, nil
}

func (m *MemoryCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.sets++
	if m.sets%sweepEvery == 0 {
		m.sweepLocked(m.now())
	}
	m.mu.Unlock()
	return nil
}

// sweepLocked drops expired entries. The caller holds mu.
func (m *MemoryCache) sweepLocked(now time.Time) {
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// size returns the number of stored entries, expired ones not yet swept
// included.
func (m *MemoryCache) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
