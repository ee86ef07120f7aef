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

func insightNode(id string, createdAt time.Time) graph.Node {
	return graph.Node{ID: id, Type: graph.NodeTypeInsight, Label: id, CreatedAt: createdAt}
}

func insightEdge(source, target string, weight float64) graph.Edge {
	return graph.Edge{
		SourceID: source, SourceType: graph.NodeTypeInsight,
		TargetID: target, TargetType: graph.NodeTypeInsight,
		RelationshipType: graph.RelationshipSimilarTo,
		Weight:           weight,
	}
}

func TestBuildEmptyProjectIsNotFound(t *testing.T) {
	builder := NewGraphBuilder(&fakeStore{}, nil)

	_, err := builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 100})
	require.Error(t, err)
	assert.True(t, engineErrors.IsNotFound(err))
}

func TestBuildValidatesInput(t *testing.T) {
	builder := NewGraphBuilder(&fakeStore{}, nil)

	_, err := builder.Build(context.Background(), "", BuildOptions{MaxNodes: 100})
	assert.True(t, engineErrors.IsValidation(err))

	_, err = builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 0})
	assert.True(t, engineErrors.IsValidation(err))
}

func TestBuildCapsNodesByRecency(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		insights: []graph.Node{
			insightNode("old", base),
			insightNode("mid", base.Add(time.Hour)),
			insightNode("new", base.Add(2*time.Hour)),
		},
		edges: []graph.Edge{
			insightEdge("old", "mid", 0.8),
			insightEdge("mid", "new", 0.9),
		},
	}
	builder := NewGraphBuilder(store, nil)

	g, err := builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, g.NodeCount())
	assert.True(t, g.HasNode("new"))
	assert.True(t, g.HasNode("mid"))
	assert.False(t, g.HasNode("old"))

	// The edge touching the capped-out node must be gone.
	require.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, "mid", g.Edges[0].SourceID)
}

func TestBuildCapTieBreaksByID(t *testing.T) {
	same := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		insights: []graph.Node{
			insightNode("c", same),
			insightNode("a", same),
			insightNode("b", same),
		},
	}
	builder := NewGraphBuilder(store, nil)

	g, err := builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.NodeIDs())
}

func TestBuildExpandsToConnectedEntities(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		insights: []graph.Node{insightNode("i1", now)},
		nodes: map[string]graph.Node{
			"e1": {ID: "e1", Type: graph.NodeTypeEntity, Label: "Postgres", CreatedAt: now},
			"s1": {ID: "s1", Type: graph.NodeTypeSynthesis, Label: "Summary", CreatedAt: now},
		},
		edges: []graph.Edge{
			{SourceID: "i1", SourceType: graph.NodeTypeInsight, TargetID: "e1", TargetType: graph.NodeTypeEntity, RelationshipType: graph.RelationshipMentions, Weight: 0.7},
			{SourceID: "s1", SourceType: graph.NodeTypeSynthesis, TargetID: "i1", TargetType: graph.NodeTypeInsight, RelationshipType: graph.RelationshipSynthesizes, Weight: 0.6},
		},
	}
	builder := NewGraphBuilder(store, nil)

	g, err := builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 100, IncludeEntities: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "i1", "s1"}, g.NodeIDs())
	assert.Equal(t, 2, g.EdgeCount())
}

func TestBuildExpansionIncludesNeighborToNeighborEdges(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		insights: []graph.Node{insightNode("i1", now)},
		nodes: map[string]graph.Node{
			"e1": {ID: "e1", Type: graph.NodeTypeEntity, Label: "Postgres", CreatedAt: now},
			"e2": {ID: "e2", Type: graph.NodeTypeEntity, Label: "Indexes", CreatedAt: now},
		},
		edges: []graph.Edge{
			{SourceID: "i1", SourceType: graph.NodeTypeInsight, TargetID: "e1", TargetType: graph.NodeTypeEntity, RelationshipType: graph.RelationshipMentions, Weight: 0.7},
			{SourceID: "i1", SourceType: graph.NodeTypeInsight, TargetID: "e2", TargetType: graph.NodeTypeEntity, RelationshipType: graph.RelationshipMentions, Weight: 0.7},
			{SourceID: "e1", SourceType: graph.NodeTypeEntity, TargetID: "e2", TargetType: graph.NodeTypeEntity, RelationshipType: graph.RelationshipRelatedTo, Weight: 0.8},
		},
	}
	builder := NewGraphBuilder(store, nil)

	g, err := builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 100, IncludeEntities: true})
	require.NoError(t, err)

	// The entity-to-entity edge only surfaces when edges are reloaded over
	// the expanded node set.
	assert.Equal(t, []string{"e1", "e2", "i1"}, g.NodeIDs())
	assert.Equal(t, 3, g.EdgeCount())
}

func TestBuildWithoutEntityExpansion(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		insights: []graph.Node{insightNode("i1", now), insightNode("i2", now)},
		nodes: map[string]graph.Node{
			"e1": {ID: "e1", Type: graph.NodeTypeEntity, Label: "Postgres", CreatedAt: now},
		},
		edges: []graph.Edge{
			insightEdge("i1", "i2", 0.9),
			{SourceID: "i1", SourceType: graph.NodeTypeInsight, TargetID: "e1", TargetType: graph.NodeTypeEntity, RelationshipType: graph.RelationshipMentions, Weight: 0.7},
		},
	}
	builder := NewGraphBuilder(store, nil)

	g, err := builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 100, IncludeEntities: false})
	require.NoError(t, err)

	assert.False(t, g.HasNode("e1"))
	// The mention edge dangles once the entity is excluded.
	require.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, "i2", g.Edges[0].TargetID)
}

func TestBuildPropagatesStoreFailure(t *testing.T) {
	store := &fakeStore{err: engineErrors.Upstream("STORE_UNREACHABLE", "boom")}
	builder := NewGraphBuilder(store, nil)

	_, err := builder.Build(context.Background(), "p1", BuildOptions{MaxNodes: 100})
	require.Error(t, err)
	assert.True(t, engineErrors.IsUpstream(err))
}
