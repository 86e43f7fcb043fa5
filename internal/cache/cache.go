// Package cache provides a thread-safe TTL snapshot cache for the decoded
// facility collection. The collection changes rarely, so a crash event
// should not pay a full collection read when a fresh snapshot exists.
package cache

import (
	"sync"
	"time"

	"github.com/rideguard/rideguard-backend/internal/facility"
)

// FacilityCache holds at most one facility snapshot with an expiry.
type FacilityCache struct {
	mu        sync.RWMutex
	snapshot  []facility.Facility
	loadedAt  time.Time
	expiresAt time.Time
	ttl       time.Duration
	enabled   bool
}

// New creates a facility cache. Pass enabled=false for a no-op cache that
// always misses.
func New(ttl time.Duration, enabled bool) *FacilityCache {
	return &FacilityCache{ttl: ttl, enabled: enabled && ttl > 0}
}

// Get returns the cached snapshot, or false when disabled, empty, or stale.
func (c *FacilityCache) Get() ([]facility.Facility, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.snapshot, true
}

// Set replaces the snapshot and resets its expiry.
func (c *FacilityCache) Set(facilities []facility.Facility) {
	if !c.enabled {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = facilities
	c.loadedAt = now
	c.expiresAt = now.Add(c.ttl)
}

// Invalidate drops the snapshot. Used by the admin CLI after facility
// writes when it shares a process with the API (tests, mostly).
func (c *FacilityCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}

// Stats returns cache statistics for the health endpoint.
func (c *FacilityCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fresh := c.snapshot != nil && time.Now().Before(c.expiresAt)
	stats := map[string]interface{}{
		"enabled":    c.enabled,
		"fresh":      fresh,
		"facilities": len(c.snapshot),
	}
	if !c.loadedAt.IsZero() {
		stats["loaded_at"] = c.loadedAt.UTC().Format(time.RFC3339)
	}
	return stats
}
