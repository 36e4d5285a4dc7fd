package revocation

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process revocation list for single-node deployments,
// examples, and tests. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns an empty in-memory revocation list.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Add records entry. Idempotent; already-expired entries are dropped.
func (m *Memory) Add(_ context.Context, entry Entry) error {
	if !entry.ExpiresAt.After(time.Now()) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.TokenID] = entry
	return nil
}

// Contains reports whether tokenID is revoked and not yet expired.
func (m *Memory) Contains(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}
	// Lazily treat dead entries as absent; PurgeExpired reclaims them.
	return entry.ExpiresAt.After(time.Now()), nil
}

// PurgeExpired removes entries whose expiry is strictly before now and
// returns the count removed.
func (m *Memory) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.entries {
		if entry.ExpiresAt.Before(now) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed, nil
}
