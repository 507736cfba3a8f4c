// Package cache provides an explicit snapshot cache keyed by resolved
// version id. The comparator core never caches; callers that compare the
// same stored version repeatedly own one of these and invalidate it
// themselves. The live current state is never cached.
package cache

import (
	"sync"
	"time"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
)

type entry struct {
	snapshot *model.Snapshot
	storedAt time.Time
}

// SnapshotCache is a TTL cache of assembled snapshots.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// New creates a snapshot cache. A zero ttl means entries never expire and
// only explicit invalidation removes them.
func New(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached snapshot for a resolved version id, if present
// and fresh.
func (c *SnapshotCache) Get(versionID string) (*model.Snapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[versionID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.Invalidate(versionID)
		return nil, false
	}
	return e.snapshot, true
}

// Put stores a snapshot under its resolved version id. Snapshots built
// from the live current state must not be stored; there is no version id
// under which they stay valid.
func (c *SnapshotCache) Put(versionID string, s *model.Snapshot) {
	if versionID == "" || s == nil {
		return
	}
	c.mu.Lock()
	c.entries[versionID] = entry{snapshot: s, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes one version's cached snapshot.
func (c *SnapshotCache) Invalidate(versionID string) {
	c.mu.Lock()
	delete(c.entries, versionID)
	c.mu.Unlock()
}

// InvalidateAll empties the cache.
func (c *SnapshotCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of cached snapshots, expired entries included.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
