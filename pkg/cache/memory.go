package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-process Store.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[T]
	clock   clockwork.Clock
}

// NewMemoryStore creates an empty store. A nil clock uses wall time.
func NewMemoryStore[T any](clock clockwork.Clock) *MemoryStore[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore[T]{
		entries: make(map[string]*Entry[T]),
		clock:   clock,
	}
}

// Get implements Store.
func (m *MemoryStore[T]) Get(_ context.Context, key string, ttl time.Duration) (*Entry[T], error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !entry.Fresh(m.clock.Now(), ttl) {
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("memory").Inc()
	cp := *entry
	return &cp, nil
}

// Put implements Store.
func (m *MemoryStore[T]) Put(_ context.Context, key string, value T) error {
	m.mu.Lock()
	m.entries[key] = &Entry[T]{Value: value, Timestamp: m.clock.Now()}
	m.mu.Unlock()
	return nil
}

// Invalidate implements Store.
func (m *MemoryStore[T]) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(keys) == 0 {
		m.entries = make(map[string]*Entry[T])
		return nil
	}
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Len returns the number of stored entries, fresh or not.
func (m *MemoryStore[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
