package services

import (
	"fmt"
	"sort"

	"lattice-backend/internal/domain/graph"
)

// ClusterFinder groups insight nodes into clusters. Two strategies exist as
// explicit variants selected at the call boundary:
//
//   - connected components over the insight-only subgraph (the legacy
//     behavior: fast, but blind to internal density), and
//   - Louvain community membership restricted to insight nodes (slower,
//     density-aware).
//
// Both honor the same minClusterSize semantics: components strictly smaller
// are dropped entirely, never padded or merged.
type ClusterFinder struct {
	detector *CommunityDetector
}

// NewClusterFinder creates a ClusterFinder.
func NewClusterFinder(detector *CommunityDetector) *ClusterFinder {
	return &ClusterFinder{detector: detector}
}

// FindComponents returns connected components of the insight-only subgraph
// with at least minClusterSize members, ordered by size descending then
// first member ascending.
func (f *ClusterFinder) FindComponents(g *graph.Graph, minClusterSize int) []graph.Cluster {
	sub := g.SubgraphByType(graph.NodeTypeInsight)
	adj := sub.Adjacency()

	visited := make(map[string]bool, sub.NodeCount())
	var groups [][]string
	for _, start := range sub.NodeIDs() {
		if visited[start] {
			continue
		}
		component := []string{}
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			component = append(component, id)
			for _, nb := range adj[id] {
				if !visited[nb.ID] {
					visited[nb.ID] = true
					queue = append(queue, nb.ID)
				}
			}
		}
		if len(component) >= minClusterSize {
			sort.Strings(component)
			groups = append(groups, component)
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})

	clusters := make([]graph.Cluster, 0, len(groups))
	for i, members := range groups {
		clusters = append(clusters, graph.Cluster{
			ID:                fmt.Sprintf("cluster-%d", i),
			NodeIDs:           members,
			Size:              len(members),
			AverageSimilarity: intraCohesion(sub, members),
		})
	}
	return clusters
}

// FindByCommunities maps Louvain communities onto clusters: each community
// is restricted to its insight-type members, filtered by minClusterSize,
// and carries the community cohesion as average similarity.
func (f *ClusterFinder) FindByCommunities(g *graph.Graph, minClusterSize int) []graph.Cluster {
	communities := f.detector.Detect(g)

	clusters := make([]graph.Cluster, 0, len(communities))
	for _, c := range communities {
		insights := make([]string, 0, len(c.NodeIDs))
		for _, id := range c.NodeIDs {
			if n, ok := g.Nodes[id]; ok && n.Type == graph.NodeTypeInsight {
				insights = append(insights, id)
			}
		}
		if len(insights) < minClusterSize {
			continue
		}
		clusters = append(clusters, graph.Cluster{
			ID:                fmt.Sprintf("cluster-%d", len(clusters)),
			NodeIDs:           insights,
			Size:              len(insights),
			AverageSimilarity: c.Cohesion,
		})
	}
	return clusters
}
