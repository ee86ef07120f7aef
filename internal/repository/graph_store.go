// Package repository defines the read-only contracts the analytics engine
// consumes from its collaborators: the relational graph store and the
// embedding service. Implementations live under internal/infrastructure.
package repository

import (
	"context"

	"lattice-backend/internal/domain/graph"
)

// GraphStore reads typed nodes and edges for a project from the relational
// store. All methods are read-only; the engine never writes source data.
type GraphStore interface {
	// ListInsightNodes returns all insight nodes for a project.
	ListInsightNodes(ctx context.Context, projectID string) ([]graph.Node, error)

	// ListEdgesTouching returns all edges with at least one endpoint in
	// nodeIDs.
	ListEdgesTouching(ctx context.Context, nodeIDs []string) ([]graph.Edge, error)

	// ListEntityNodes returns entity nodes by id.
	ListEntityNodes(ctx context.Context, ids []string) ([]graph.Node, error)

	// ListChallengeNodes returns challenge nodes by id.
	ListChallengeNodes(ctx context.Context, ids []string) ([]graph.Node, error)

	// ListSynthesisNodes returns synthesis nodes by id.
	ListSynthesisNodes(ctx context.Context, ids []string) ([]graph.Node, error)

	// FindEntitiesByName returns entity nodes of a project whose names match
	// any of the query tokens (case-insensitive substring match).
	FindEntitiesByName(ctx context.Context, projectID string, tokens []string) ([]graph.Node, error)

	// ListInsightEmbeddings returns the stored embedding vectors for a
	// project's insights.
	ListInsightEmbeddings(ctx context.Context, projectID string) ([]InsightEmbedding, error)
}

// InsightEmbedding pairs an insight id with its stored embedding vector.
type InsightEmbedding struct {
	InsightID string
	Label     string
	Embedding []float32
}

// Embedder converts text into an embedding vector. May fail; callers are
// expected to degrade gracefully rather than propagate the failure.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
