package services

import (
	"sort"

	"lattice-backend/internal/domain/graph"
)

// RelatedTraversal walks typed edges outward from a starting node.
type RelatedTraversal struct{}

// NewRelatedTraversal creates a RelatedTraversal.
func NewRelatedTraversal() *RelatedTraversal {
	return &RelatedTraversal{}
}

// Related performs a bounded breadth-first walk from startID up to depth
// hops, following only edges whose relationship type is in allowed, in the
// edges' source-to-target direction. Each node is visited at most once and
// startID is excluded from the result. depth <= 0 returns an empty list.
// Results are in BFS discovery order with neighbors expanded in ascending
// id order.
func (t *RelatedTraversal) Related(g *graph.Graph, startID string, depth int, allowed []graph.RelationshipType) []string {
	result := []string{}
	if g == nil || depth <= 0 || !g.HasNode(startID) {
		return result
	}

	allowedSet := make(map[graph.RelationshipType]bool, len(allowed))
	for _, rt := range allowed {
		allowedSet[rt] = true
	}

	// Directed adjacency restricted to allowed relationship types.
	out := make(map[string][]string)
	for _, e := range g.Edges {
		if allowedSet[e.RelationshipType] {
			out[e.SourceID] = append(out[e.SourceID], e.TargetID)
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}

	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, target := range out[id] {
				if visited[target] {
					continue
				}
				visited[target] = true
				next = append(next, target)
				result = append(result, target)
			}
		}
		frontier = next
	}
	return result
}
