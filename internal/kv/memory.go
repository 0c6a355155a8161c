package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is a process-local Backend used in tests and when no
// external store is configured. Safe for concurrent use.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// Now is injectable for TTL tests; defaults to time.Now.
	Now func() time.Time
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]Entry),
		Now:     time.Now,
	}
}

func (m *MemoryBackend) Read(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || e.Expired(m.Now()) {
		return nil, nil
	}
	copied := e
	return &copied, nil
}

func (m *MemoryBackend) Write(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key] = entry
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryBackend) Touch(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.Hits++
		m.entries[key] = e
	}
	return nil
}

func (m *MemoryBackend) DeleteMatching(_ context.Context, source, substr string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if source != "" && e.Source != source {
			continue
		}
		if substr != "" && !strings.Contains(key, substr) {
			continue
		}
		delete(m.entries, key)
		removed++
	}
	return removed, nil
}

func (m *MemoryBackend) DeleteExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	removed := 0
	for key, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryBackend) Migrate(context.Context) error { return nil }

func (m *MemoryBackend) Close() error { return nil }

// Len reports the number of stored entries, expired included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
