package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := NewSnapshotCache(time.Minute, nil)

	_, ok := c.Get("p1")
	assert.False(t, ok)

	payload := map[string]int{"nodes": 42}
	c.Set("p1", payload)

	entry, ok := c.Get("p1")
	require.True(t, ok)
	assert.Equal(t, payload, entry.Payload)
	assert.False(t, entry.ComputedAt.IsZero())
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	c := NewSnapshotCache(10*time.Millisecond, nil)
	c.Set("p1", "snapshot")

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("p1")
	assert.False(t, ok)

	stats := c.GetStats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Zero(t, stats.Entries)
}

func TestSetReplacesWholeEntry(t *testing.T) {
	c := NewSnapshotCache(time.Minute, nil)
	first := c.Set("p1", "v1")
	second := c.Set("p1", "v2")

	assert.NotSame(t, first, second)

	entry, ok := c.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "v2", entry.Payload)
}

func TestInvalidate(t *testing.T) {
	c := NewSnapshotCache(time.Minute, nil)
	c.Set("p1", "v1")
	c.Invalidate("p1")

	_, ok := c.Get("p1")
	assert.False(t, ok)

	// Invalidating an absent key must not count an eviction.
	before := c.GetStats().Evictions
	c.Invalidate("absent")
	assert.Equal(t, before, c.GetStats().Evictions)
}

func TestSetTTLAffectsOnlyNewEntries(t *testing.T) {
	c := NewSnapshotCache(time.Hour, nil)
	c.Set("old", "v")
	c.SetTTL(10 * time.Millisecond)
	c.Set("new", "v")

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("old")
	assert.True(t, ok, "entries keep the TTL they were written with")
	_, ok = c.Get("new")
	assert.False(t, ok)
}

func TestStatsCounters(t *testing.T) {
	c := NewSnapshotCache(time.Minute, nil)
	c.Set("p1", "v")

	c.Get("p1")
	c.Get("p1")
	c.Get("missing")

	stats := c.GetStats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	c := NewSnapshotCache(time.Minute, nil)
	c.Set("p1", 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("p1", n*100+j)
				if entry, ok := c.Get("p1"); ok {
					// Whole-entry swap: the payload is always a complete value.
					_, isInt := entry.Payload.(int)
					assert.True(t, isInt)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := NewSnapshotCache(5*time.Millisecond, nil)
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("p%d", i), i)
	}
	c.StartSweep(10 * time.Millisecond)
	defer c.StopSweep()

	assert.Eventually(t, func() bool {
		return c.GetStats().Entries == 0
	}, time.Second, 10*time.Millisecond)
}
