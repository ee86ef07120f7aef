package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"lattice-backend/internal/config"
	"lattice-backend/internal/domain/graph"
	domainservices "lattice-backend/internal/domain/services"
	"lattice-backend/internal/infrastructure/cache"
	"lattice-backend/internal/infrastructure/observability"
	"lattice-backend/internal/repository"
)

// fakeStore is an in-memory GraphStore for tests.
type fakeStore struct {
	insights   []graph.Node
	edges      []graph.Edge
	nodes      map[string]graph.Node // entity/challenge/synthesis nodes by id
	embeddings []repository.InsightEmbedding

	err       error
	listCalls int
}

var _ repository.GraphStore = (*fakeStore)(nil)

func (f *fakeStore) ListInsightNodes(ctx context.Context, projectID string) ([]graph.Node, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.insights, nil
}

func (f *fakeStore) ListEdgesTouching(ctx context.Context, nodeIDs []string) ([]graph.Edge, error) {
	if f.err != nil {
		return nil, f.err
	}
	inSet := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		inSet[id] = true
	}
	var touching []graph.Edge
	for _, e := range f.edges {
		if inSet[e.SourceID] || inSet[e.TargetID] {
			touching = append(touching, e)
		}
	}
	return touching, nil
}

func (f *fakeStore) listByType(ids []string, t graph.NodeType) ([]graph.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []graph.Node
	for _, id := range ids {
		if n, ok := f.nodes[id]; ok && n.Type == t {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEntityNodes(ctx context.Context, ids []string) ([]graph.Node, error) {
	return f.listByType(ids, graph.NodeTypeEntity)
}

func (f *fakeStore) ListChallengeNodes(ctx context.Context, ids []string) ([]graph.Node, error) {
	return f.listByType(ids, graph.NodeTypeChallenge)
}

func (f *fakeStore) ListSynthesisNodes(ctx context.Context, ids []string) ([]graph.Node, error) {
	return f.listByType(ids, graph.NodeTypeSynthesis)
}

func (f *fakeStore) FindEntitiesByName(ctx context.Context, projectID string, tokens []string) ([]graph.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []graph.Node
	for _, n := range f.nodes {
		if n.Type != graph.NodeTypeEntity {
			continue
		}
		for _, token := range tokens {
			if strings.Contains(strings.ToLower(n.Label), token) {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListInsightEmbeddings(ctx context.Context, projectID string) ([]repository.InsightEmbedding, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.embeddings, nil
}

// fakeEmbedder returns a fixed vector or a fixed error.
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func testGraphConfig() config.GraphConfig {
	return config.GraphConfig{DefaultMaxNodes: 500, IncludeEntities: true, MaxDepth: 5}
}

func newTestAnalyticsService(store repository.GraphStore, cacheEnabled bool) *AnalyticsService {
	builder := NewGraphBuilder(store, nil)
	return NewAnalyticsService(
		builder,
		domainservices.NewCentralityAnalyzer(),
		domainservices.NewCommunityDetector(),
		cache.NewSnapshotCache(time.Minute, nil),
		cache.NewSnapshotCache(time.Minute, nil),
		cacheEnabled,
		testGraphConfig(),
		observability.NewMetrics(),
		testTracer(),
		nil,
	)
}
