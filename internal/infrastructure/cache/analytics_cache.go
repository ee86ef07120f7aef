// Package cache implements the process-wide analytics cache. Entries are
// immutable snapshots swapped atomically per key, so concurrent readers can
// never observe a torn payload. The engine holds two independent instances:
// one for full analytics results and one for community partitions.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Entry is one immutable cached snapshot. Payloads are owned by the cache
// after Set; callers must treat them as read-only.
type Entry struct {
	Payload    interface{}
	ComputedAt time.Time
	expiresAt  time.Time
}

// SnapshotCache is a per-project cache of immutable analytics snapshots
// with a fixed TTL. Replacement is whole-entry: a Set stores a fresh Entry
// pointer, never mutating the previous one in place.
type SnapshotCache struct {
	entries sync.Map // projectID -> *Entry
	ttl     atomic.Int64
	logger  *zap.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewSnapshotCache creates a cache with the given TTL.
func NewSnapshotCache(ttl time.Duration, logger *zap.Logger) *SnapshotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &SnapshotCache{
		logger:    logger,
		stopSweep: make(chan struct{}),
	}
	c.ttl.Store(int64(ttl))
	return c
}

// Get returns the cached entry for projectID, or a miss when the key is
// absent or the entry's TTL has elapsed.
func (c *SnapshotCache) Get(projectID string) (*Entry, bool) {
	value, ok := c.entries.Load(projectID)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	entry := value.(*Entry)
	if time.Now().After(entry.expiresAt) {
		c.entries.Delete(projectID)
		c.evictions.Add(1)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry, true
}

// Set stores payload under projectID, replacing any previous entry whole.
func (c *SnapshotCache) Set(projectID string, payload interface{}) *Entry {
	now := time.Now()
	entry := &Entry{
		Payload:    payload,
		ComputedAt: now,
		expiresAt:  now.Add(c.TTL()),
	}
	c.entries.Store(projectID, entry)
	return entry
}

// Invalidate removes the entry for projectID if present.
func (c *SnapshotCache) Invalidate(projectID string) {
	if _, ok := c.entries.LoadAndDelete(projectID); ok {
		c.evictions.Add(1)
	}
}

// TTL returns the current time-to-live.
func (c *SnapshotCache) TTL() time.Duration {
	return time.Duration(c.ttl.Load())
}

// SetTTL updates the TTL for subsequently written entries. Existing entries
// keep the expiry they were written with.
func (c *SnapshotCache) SetTTL(ttl time.Duration) {
	c.ttl.Store(int64(ttl))
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// GetStats returns current counters.
func (c *SnapshotCache) GetStats() Stats {
	count := 0
	c.entries.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   count,
	}
}

// StartSweep launches a background goroutine that drops expired entries so
// an idle project does not pin its last snapshot forever.
func (c *SnapshotCache) StartSweep(interval time.Duration) {
	c.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-c.stopSweep:
					return
				case <-ticker.C:
					c.sweepExpired()
				}
			}
		}()
	})
}

// StopSweep terminates the sweep goroutine.
func (c *SnapshotCache) StopSweep() {
	select {
	case <-c.stopSweep:
	default:
		close(c.stopSweep)
	}
}

func (c *SnapshotCache) sweepExpired() {
	now := time.Now()
	removed := 0
	c.entries.Range(func(key, value interface{}) bool {
		if now.After(value.(*Entry).expiresAt) {
			c.entries.Delete(key)
			c.evictions.Add(1)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("swept expired cache entries", zap.Int("count", removed))
	}
}
