package store

import (
	"context"
	"sync"
	"time"
)

// MemoryOwnershipCache implements OwnershipCache in process memory. Used
// in development wiring and tests when Redis is not available.
type MemoryOwnershipCache struct {
	mu      sync.RWMutex
	entries map[string]ownershipEntry
}

type ownershipEntry struct {
	tenantID  string
	expiresAt time.Time
}

// NewMemoryOwnershipCache creates a new in-memory ownership cache
func NewMemoryOwnershipCache() *MemoryOwnershipCache {
	return &MemoryOwnershipCache{
		entries: make(map[string]ownershipEntry),
	}
}

// GetOwner retrieves the cached owner of a flow
func (c *MemoryOwnershipCache) GetOwner(ctx context.Context, flowID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[flowID]
	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return "", ErrNotFound
	}
	return entry.tenantID, nil
}

// SetOwner caches the owner of a flow
func (c *MemoryOwnershipCache) SetOwner(ctx context.Context, flowID, tenantID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := ownershipEntry{tenantID: tenantID}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[flowID] = entry
	return nil
}

// DeleteOwner removes a flow's cached ownership
func (c *MemoryOwnershipCache) DeleteOwner(ctx context.Context, flowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, flowID)
	return nil
}

// Ping always succeeds for the in-memory cache
func (c *MemoryOwnershipCache) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory cache
func (c *MemoryOwnershipCache) Close() error {
	return nil
}
