// Package services contains the application layer: use cases that pull
// rows from the store, assemble the per-request graph, run the domain
// algorithms, and shape the results for transport. Orchestration lives
// here; the algorithms stay pure in internal/domain/services.
package services

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lattice-backend/internal/domain/graph"
	engineErrors "lattice-backend/internal/errors"
	"lattice-backend/internal/repository"
)

// BuildOptions tunes one graph construction.
type BuildOptions struct {
	// MaxNodes caps the graph size. Zero or negative means the configured
	// default supplied by the caller; the builder itself requires a positive
	// value.
	MaxNodes int
	// IncludeEntities expands the graph one hop from insights to their
	// connected entity, challenge, and synthesis nodes.
	IncludeEntities bool
}

// GraphBuilder assembles the per-request project graph from store rows.
type GraphBuilder struct {
	store  repository.GraphStore
	logger *zap.Logger
}

// NewGraphBuilder creates a GraphBuilder.
func NewGraphBuilder(store repository.GraphStore, logger *zap.Logger) *GraphBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphBuilder{store: store, logger: logger}
}

// Build loads the project's insight nodes, optionally expands one hop to
// connected entity, challenge, and synthesis nodes, caps the node set at
// opts.MaxNodes by recency, and drops every edge left dangling by the cap.
// A project with zero insights is a not-found condition, not an empty graph.
func (b *GraphBuilder) Build(ctx context.Context, projectID string, opts BuildOptions) (*graph.Graph, error) {
	if projectID == "" {
		return nil, engineErrors.Validation("PROJECT_ID_REQUIRED", "project id is required")
	}
	if opts.MaxNodes <= 0 {
		return nil, engineErrors.Validation("MAX_NODES_INVALID", "maxNodes must be positive")
	}

	insights, err := b.store.ListInsightNodes(ctx, projectID)
	if err != nil {
		return nil, engineErrors.Wrap(err, "GraphBuilder.Build", "failed to load insight nodes")
	}
	if len(insights) == 0 {
		return nil, engineErrors.NotFound("PROJECT_HAS_NO_INSIGHTS", "project has no insights").
			WithResource(projectID)
	}

	insightIDs := make([]string, 0, len(insights))
	for _, n := range insights {
		insightIDs = append(insightIDs, n.ID)
	}
	sort.Strings(insightIDs)

	edges, err := b.store.ListEdgesTouching(ctx, insightIDs)
	if err != nil {
		return nil, engineErrors.Wrap(err, "GraphBuilder.Build", "failed to load edges")
	}

	nodes := make([]graph.Node, len(insights))
	copy(nodes, insights)

	if opts.IncludeEntities {
		neighbors, err := b.loadNeighborNodes(ctx, insightIDs, edges)
		if err != nil {
			return nil, err
		}
		if len(neighbors) > 0 {
			nodes = append(nodes, neighbors...)
			// Re-fetch over the expanded id set so edges between two
			// neighbor nodes enter the graph, not just edges touching
			// insights. The fresh set supersedes the first fetch.
			allIDs := make([]string, 0, len(nodes))
			for _, n := range nodes {
				allIDs = append(allIDs, n.ID)
			}
			sort.Strings(allIDs)
			edges, err = b.store.ListEdgesTouching(ctx, allIDs)
			if err != nil {
				return nil, engineErrors.Wrap(err, "GraphBuilder.Build", "failed to load expanded edges")
			}
		}
	}

	kept := capByRecency(nodes, opts.MaxNodes)

	g := graph.New(projectID)
	for _, n := range kept {
		g.AddNode(n)
	}
	for _, e := range edges {
		// Drop edges touching capped-out or never-fetched endpoints.
		if g.HasNode(e.SourceID) && g.HasNode(e.TargetID) {
			g.AddEdge(e)
		}
	}

	b.logger.Debug("graph built",
		zap.String("project_id", projectID),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
		zap.Bool("include_entities", opts.IncludeEntities),
	)
	return g, nil
}

// loadNeighborNodes fetches the non-insight endpoints of the edge set,
// one store call per node type, concurrently.
func (b *GraphBuilder) loadNeighborNodes(ctx context.Context, insightIDs []string, edges []graph.Edge) ([]graph.Node, error) {
	isInsight := make(map[string]bool, len(insightIDs))
	for _, id := range insightIDs {
		isInsight[id] = true
	}

	byType := make(map[graph.NodeType]map[string]bool)
	collect := func(id string, t graph.NodeType) {
		if isInsight[id] || t == graph.NodeTypeInsight {
			return
		}
		if byType[t] == nil {
			byType[t] = make(map[string]bool)
		}
		byType[t][id] = true
	}
	for _, e := range edges {
		collect(e.SourceID, e.SourceType)
		collect(e.TargetID, e.TargetType)
	}

	sortedIDs := func(set map[string]bool) []string {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}

	var entityNodes, challengeNodes, synthesisNodes []graph.Node
	eg, egCtx := errgroup.WithContext(ctx)
	if ids := sortedIDs(byType[graph.NodeTypeEntity]); len(ids) > 0 {
		eg.Go(func() error {
			var err error
			entityNodes, err = b.store.ListEntityNodes(egCtx, ids)
			return err
		})
	}
	if ids := sortedIDs(byType[graph.NodeTypeChallenge]); len(ids) > 0 {
		eg.Go(func() error {
			var err error
			challengeNodes, err = b.store.ListChallengeNodes(egCtx, ids)
			return err
		})
	}
	if ids := sortedIDs(byType[graph.NodeTypeSynthesis]); len(ids) > 0 {
		eg.Go(func() error {
			var err error
			synthesisNodes, err = b.store.ListSynthesisNodes(egCtx, ids)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, engineErrors.Wrap(err, "GraphBuilder.loadNeighborNodes", "failed to load neighbor nodes")
	}

	neighbors := make([]graph.Node, 0, len(entityNodes)+len(challengeNodes)+len(synthesisNodes))
	neighbors = append(neighbors, entityNodes...)
	neighbors = append(neighbors, challengeNodes...)
	neighbors = append(neighbors, synthesisNodes...)
	return neighbors, nil
}

// capByRecency keeps at most maxNodes nodes, newest first, ties broken by
// ascending id so the cut is stable across runs.
func capByRecency(nodes []graph.Node, maxNodes int) []graph.Node {
	if len(nodes) <= maxNodes {
		return nodes
	}
	sorted := make([]graph.Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[:maxNodes]
}
