package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice-backend/internal/domain/graph"
	engineErrors "lattice-backend/internal/errors"
)

func connectedStore() *fakeStore {
	now := time.Now()
	return &fakeStore{
		insights: []graph.Node{
			insightNode("i1", now),
			insightNode("i2", now),
			insightNode("i3", now),
		},
		edges: []graph.Edge{
			insightEdge("i1", "i2", 0.9),
			insightEdge("i2", "i3", 0.8),
		},
	}
}

func TestProjectAnalyticsCachesSecondRead(t *testing.T) {
	store := connectedStore()
	svc := newTestAnalyticsService(store, true)

	first, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 3, first.Data.NodeCount)

	second, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Same(t, first.Data, second.Data, "cached reads return the identical snapshot")
	assert.Equal(t, 1, store.listCalls)
}

func TestProjectAnalyticsRefreshBypassesCache(t *testing.T) {
	store := connectedStore()
	svc := newTestAnalyticsService(store, true)

	_, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)

	refreshed, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{Refresh: true})
	require.NoError(t, err)
	assert.False(t, refreshed.FromCache)
	assert.Equal(t, 2, store.listCalls)

	// The refresh result replaced the cached snapshot.
	third, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Same(t, refreshed.Data, third.Data)
}

func TestProjectAnalyticsCacheDisabled(t *testing.T) {
	store := connectedStore()
	svc := newTestAnalyticsService(store, false)

	for i := 0; i < 3; i++ {
		envelope, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
		require.NoError(t, err)
		assert.False(t, envelope.FromCache)
	}
	assert.Equal(t, 3, store.listCalls)
}

func TestProjectCommunitiesIndependentNamespace(t *testing.T) {
	svc := newTestAnalyticsService(connectedStore(), true)

	_, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)

	// Communities were never computed, so this is a fresh computation even
	// though analytics is cached.
	communities, err := svc.ProjectCommunities(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	assert.False(t, communities.FromCache)
	assert.NotEmpty(t, communities.Data.Communities)
}

func TestInvalidateProjectDropsBothNamespaces(t *testing.T) {
	store := connectedStore()
	svc := newTestAnalyticsService(store, true)

	_, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	_, err = svc.ProjectCommunities(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)

	svc.InvalidateProject("p1")

	analytics, err := svc.ProjectAnalytics(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	assert.False(t, analytics.FromCache)
	communities, err := svc.ProjectCommunities(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	assert.False(t, communities.FromCache)
}

func TestProjectAnalyticsNotFoundPropagates(t *testing.T) {
	svc := newTestAnalyticsService(&fakeStore{}, true)

	_, err := svc.ProjectAnalytics(context.Background(), "empty", AnalyticsOptions{})
	require.Error(t, err)
	assert.True(t, engineErrors.IsNotFound(err))
}

func TestShortestPathEndpointChecks(t *testing.T) {
	svc := newTestAnalyticsService(connectedStore(), false)

	_, err := svc.ShortestPath(context.Background(), "p1", "", "i3", AnalyticsOptions{})
	assert.True(t, engineErrors.IsValidation(err))

	_, err = svc.ShortestPath(context.Background(), "p1", "i1", "missing", AnalyticsOptions{})
	assert.True(t, engineErrors.IsNotFound(err))

	result, err := svc.ShortestPath(context.Background(), "p1", "i1", "i3", AnalyticsOptions{})
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, []string{"i1", "i2", "i3"}, result.Path)
}

func TestShortestPathUnreachableIsNotAnError(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		insights: []graph.Node{insightNode("i1", now), insightNode("i2", now)},
	}
	svc := newTestAnalyticsService(store, false)

	result, err := svc.ShortestPath(context.Background(), "p1", "i1", "i2", AnalyticsOptions{})
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Empty(t, result.Path)
}

func TestRelatedInsightsValidation(t *testing.T) {
	svc := newTestAnalyticsService(connectedStore(), false)

	_, err := svc.RelatedInsights(context.Background(), "p1", "i1", 99, nil)
	assert.True(t, engineErrors.IsValidation(err), "depth above the configured maximum is rejected")

	_, err = svc.RelatedInsights(context.Background(), "p1", "i1", 2, []string{"NOT_A_TYPE"})
	assert.True(t, engineErrors.IsValidation(err))

	_, err = svc.RelatedInsights(context.Background(), "p1", "missing", 2, nil)
	assert.True(t, engineErrors.IsNotFound(err))
}

func TestRelatedInsightsChain(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		insights: []graph.Node{
			insightNode("I1", now), insightNode("I2", now),
			insightNode("I3", now), insightNode("I4", now),
		},
		edges: []graph.Edge{
			{SourceID: "I1", SourceType: graph.NodeTypeInsight, TargetID: "I2", TargetType: graph.NodeTypeInsight, RelationshipType: graph.RelationshipRelatedTo, Weight: 0.9},
			{SourceID: "I2", SourceType: graph.NodeTypeInsight, TargetID: "I3", TargetType: graph.NodeTypeInsight, RelationshipType: graph.RelationshipRelatedTo, Weight: 0.9},
			{SourceID: "I3", SourceType: graph.NodeTypeInsight, TargetID: "I4", TargetType: graph.NodeTypeInsight, RelationshipType: graph.RelationshipRelatedTo, Weight: 0.9},
		},
	}
	svc := newTestAnalyticsService(store, false)

	related, err := svc.RelatedInsights(context.Background(), "p1", "I1", 2, []string{"RELATED_TO"})
	require.NoError(t, err)
	assert.Equal(t, []string{"I2", "I3"}, related)
}

func TestProjectGraphStats(t *testing.T) {
	svc := newTestAnalyticsService(connectedStore(), false)

	stats, err := svc.ProjectGraphStats(context.Background(), "p1", AnalyticsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 2, stats.EdgeCount)
	assert.Equal(t, 3, stats.NodesByType["insight"])
	assert.InDelta(t, 2.0/3.0, stats.Density, 1e-9)
}
