package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice-backend/internal/domain/graph"
)

func buildGraph(t *testing.T, nodeIDs []string, edges []graph.Edge) *graph.Graph {
	t.Helper()
	g := graph.New("project-1")
	for _, id := range nodeIDs {
		g.AddNode(graph.Node{ID: id, Type: graph.NodeTypeInsight, CreatedAt: time.Now()})
	}
	for _, e := range edges {
		e.SourceType = graph.NodeTypeInsight
		e.TargetType = graph.NodeTypeInsight
		if e.RelationshipType == "" {
			e.RelationshipType = graph.RelationshipSimilarTo
		}
		g.AddEdge(e)
	}
	return g
}

func TestShortestPathLinearChain(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 1.0},
		{SourceID: "B", TargetID: "C", Weight: 1.0},
	})

	result := NewPathFinder().ShortestPath(g, "A", "C")
	require.NotNil(t, result)
	assert.Equal(t, []string{"A", "B", "C"}, result.Path)
	assert.InDelta(t, 2.0, result.TotalWeight, 1e-9)
}

func TestShortestPathPrefersStrongerEdges(t *testing.T) {
	// Direct A-C is weak (cost 1/0.2 = 5); the detour costs 1+1 = 2.
	g := buildGraph(t, []string{"A", "B", "C"}, []graph.Edge{
		{SourceID: "A", TargetID: "C", Weight: 0.2},
		{SourceID: "A", TargetID: "B", Weight: 1.0},
		{SourceID: "B", TargetID: "C", Weight: 1.0},
	})

	result := NewPathFinder().ShortestPath(g, "A", "C")
	require.NotNil(t, result)
	assert.Equal(t, []string{"A", "B", "C"}, result.Path)
}

func TestShortestPathSameNode(t *testing.T) {
	g := buildGraph(t, []string{"A"}, nil)

	result := NewPathFinder().ShortestPath(g, "A", "A")
	require.NotNil(t, result)
	assert.Equal(t, []string{"A"}, result.Path)
	assert.Zero(t, result.TotalWeight)
}

func TestShortestPathMissingEndpoint(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 1.0},
	})

	finder := NewPathFinder()
	assert.Nil(t, finder.ShortestPath(g, "A", "Z"))
	assert.Nil(t, finder.ShortestPath(g, "Z", "B"))
}

func TestShortestPathUnreachable(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C", "D"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 1.0},
		{SourceID: "C", TargetID: "D", Weight: 1.0},
	})

	assert.Nil(t, NewPathFinder().ShortestPath(g, "A", "D"))
}

func TestShortestPathDeterministicTieBreak(t *testing.T) {
	// Two equal-cost routes A-B-D and A-C-D; the lexicographically smaller
	// predecessor wins, so the path must go through B every time.
	g := buildGraph(t, []string{"A", "B", "C", "D"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 1.0},
		{SourceID: "A", TargetID: "C", Weight: 1.0},
		{SourceID: "B", TargetID: "D", Weight: 1.0},
		{SourceID: "C", TargetID: "D", Weight: 1.0},
	})

	finder := NewPathFinder()
	for i := 0; i < 20; i++ {
		result := finder.ShortestPath(g, "A", "D")
		require.NotNil(t, result)
		assert.Equal(t, []string{"A", "B", "D"}, result.Path)
	}
}

func TestShortestPathMatchesBruteForce(t *testing.T) {
	// Every pair's Dijkstra cost must equal the exhaustive minimum over all
	// simple paths.
	g := buildGraph(t, []string{"A", "B", "C", "D", "E"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 0.9},
		{SourceID: "A", TargetID: "C", Weight: 0.3},
		{SourceID: "B", TargetID: "C", Weight: 0.8},
		{SourceID: "B", TargetID: "D", Weight: 0.4},
		{SourceID: "C", TargetID: "D", Weight: 0.95},
		{SourceID: "C", TargetID: "E", Weight: 0.5},
		{SourceID: "D", TargetID: "E", Weight: 0.7},
	})

	adj := g.Adjacency()
	var enumerate func(current, target string, visited map[string]bool, cost float64, best *float64)
	enumerate = func(current, target string, visited map[string]bool, cost float64, best *float64) {
		if current == target {
			if *best < 0 || cost < *best {
				*best = cost
			}
			return
		}
		visited[current] = true
		for _, n := range adj[current] {
			if !visited[n.ID] {
				enumerate(n.ID, target, visited, cost+n.Cost, best)
			}
		}
		visited[current] = false
	}

	finder := NewPathFinder()
	ids := g.NodeIDs()
	for _, from := range ids {
		for _, to := range ids {
			best := -1.0
			enumerate(from, to, map[string]bool{}, 0, &best)
			require.GreaterOrEqual(t, best, 0.0, "%s->%s must be reachable", from, to)

			result := finder.ShortestPath(g, from, to)
			require.NotNil(t, result, "%s->%s", from, to)
			assert.InDelta(t, best, result.TotalWeight, 1e-9, "%s->%s", from, to)
		}
	}
}

func TestShortestPathNilGraph(t *testing.T) {
	assert.Nil(t, NewPathFinder().ShortestPath(nil, "A", "B"))
}
