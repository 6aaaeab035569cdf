// Package substrate provides the key/value backends the feed store persists to.
package substrate

import (
	"fmt"
	"sync"

	"feed-go/internal/feed"
)

// MemorySubstrate is an in-memory implementation of feed.Substrate.
// It can enforce a byte quota over all keys and values, like browser storage
// does. This implementation is safe for concurrent use.
type MemorySubstrate struct {
	values   map[string]string
	size     int64 // sum of len(key)+len(value)
	maxBytes int64 // 0 means unlimited
	mu       sync.RWMutex
}

var _ feed.Substrate = (*MemorySubstrate)(nil)

// NewMemorySubstrate creates an empty substrate. maxBytes <= 0 disables the quota.
func NewMemorySubstrate(maxBytes int64) *MemorySubstrate {
	return &MemorySubstrate{
		values:   make(map[string]string),
		maxBytes: maxBytes,
	}
}

func (m *MemorySubstrate) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key. A write that would push the total past the
// quota fails with feed.ErrQuotaExceeded and leaves the previous value intact.
func (m *MemorySubstrate) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.size + entrySize(key, value)
	if old, ok := m.values[key]; ok {
		next -= entrySize(key, old)
	}
	if m.maxBytes > 0 && next > m.maxBytes {
		return fmt.Errorf("setting %s: %w (%d of %d bytes)", key, feed.ErrQuotaExceeded, next, m.maxBytes)
	}

	m.values[key] = value
	m.size = next
	return nil
}

func (m *MemorySubstrate) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.values[key]; ok {
		m.size -= entrySize(key, old)
		delete(m.values, key)
	}
	return nil
}

// Size returns the bytes currently counted against the quota.
func (m *MemorySubstrate) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func entrySize(key, value string) int64 {
	return int64(len(key) + len(value))
}
