package services

import (
	"lattice-backend/internal/domain/graph"
)

// PathResult is a weighted shortest path between two nodes.
type PathResult struct {
	Path        []string `json:"path"`
	TotalWeight float64  `json:"total_weight"`
}

// PathFinder computes weighted shortest paths with Dijkstra's algorithm.
// Edge cost is 1/weight: higher similarity means a lower cost and a
// preferred route.
type PathFinder struct{}

// NewPathFinder creates a PathFinder.
func NewPathFinder() *PathFinder {
	return &PathFinder{}
}

// ShortestPath returns the minimum-cost path from fromID to toID, or nil
// when either id is absent from the graph or no path exists. A nil result
// is a valid negative answer, not an error. Distance ties are resolved
// toward the lexicographically smaller predecessor so the returned path is
// deterministic.
func (f *PathFinder) ShortestPath(g *graph.Graph, fromID, toID string) *PathResult {
	if g == nil || !g.HasNode(fromID) || !g.HasNode(toID) {
		return nil
	}
	if fromID == toID {
		return &PathResult{Path: []string{fromID}, TotalWeight: 0}
	}

	adj := g.Adjacency()
	dist := make(map[string]float64, g.NodeCount())
	prev := make(map[string]string, g.NodeCount())
	visited := make(map[string]bool, g.NodeCount())

	dist[fromID] = 0
	pq := newNodeQueue()
	pq.push(fromID, 0)

	for pq.Len() > 0 {
		u := pq.pop()
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == toID {
			break
		}

		for _, nb := range adj[u] {
			alt := dist[u] + nb.Cost
			current, seen := dist[nb.ID]
			switch {
			case !seen || alt < current:
				dist[nb.ID] = alt
				prev[nb.ID] = u
				pq.push(nb.ID, alt)
			case alt == current && u < prev[nb.ID]:
				prev[nb.ID] = u
			}
		}
	}

	if !visited[toID] {
		return nil
	}

	// Walk predecessors back to the start, then reverse.
	path := []string{toID}
	for at := toID; at != fromID; {
		at = prev[at]
		path = append(path, at)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return &PathResult{Path: path, TotalWeight: dist[toID]}
}
