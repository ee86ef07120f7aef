package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildWorkerWarmsCaches(t *testing.T) {
	store := connectedStore()
	analytics := newTestAnalyticsService(store, true)
	worker := NewRebuildWorker(analytics, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)
	defer worker.Stop()

	taskID := worker.Enqueue("p1")
	assert.NotEmpty(t, taskID)

	// Both namespaces end up warm without any request-path computation.
	assert.Eventually(t, func() bool {
		envelope, err := analytics.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
		if err != nil || !envelope.FromCache {
			return false
		}
		communities, err := analytics.ProjectCommunities(context.Background(), "p1", AnalyticsOptions{})
		return err == nil && communities.FromCache
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRebuildWorkerSuppressesDuplicates(t *testing.T) {
	worker := NewRebuildWorker(newTestAnalyticsService(connectedStore(), true), nil)

	// Mark the project in flight as the worker loop would.
	worker.mu.Lock()
	worker.inflight["p1"] = true
	worker.mu.Unlock()

	assert.Empty(t, worker.Enqueue("p1"))
	assert.NotEmpty(t, worker.Enqueue("p2"))
}

func TestRebuildWorkerRejectsEmptyProject(t *testing.T) {
	worker := NewRebuildWorker(newTestAnalyticsService(connectedStore(), true), nil)
	assert.Empty(t, worker.Enqueue(""))
}

func TestRebuildWorkerStopWithoutStart(t *testing.T) {
	worker := NewRebuildWorker(newTestAnalyticsService(connectedStore(), true), nil)
	require.NotPanics(t, worker.Stop)
}
