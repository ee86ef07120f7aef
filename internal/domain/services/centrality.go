// Package services contains the pure graph algorithms of the analytics
// engine: centrality, community detection, shortest paths, clustering, and
// bounded traversal. Everything here is domain logic with no infrastructure
// dependencies; graphs come in, values come out.
//
// Determinism contract: all algorithms iterate nodes and neighbors in
// ascending id order, so identical input graphs always produce identical
// output.
package services

import (
	"container/heap"
	"math"
	"sort"

	"lattice-backend/internal/domain/graph"
)

// PageRank and ranking constants.
const (
	pageRankDamping     = 0.85
	pageRankConvergence = 1e-6
	pageRankMaxIter     = 100
	topMetricCount      = 10
)

// Centrality metric names used as TopByMetric keys.
const (
	MetricDegree      = "degree"
	MetricBetweenness = "betweenness"
	MetricPageRank    = "pagerank"
)

// CentralityResult holds all per-node centrality scores.
type CentralityResult struct {
	Degree      map[string]float64  `json:"degree"`
	Betweenness map[string]float64  `json:"betweenness"`
	PageRank    map[string]float64  `json:"pagerank"`
	TopByMetric map[string][]string `json:"top_by_metric"`
}

// CentralityAnalyzer computes degree, betweenness, and PageRank centrality
// over a built graph.
type CentralityAnalyzer struct{}

// NewCentralityAnalyzer creates a CentralityAnalyzer.
func NewCentralityAnalyzer() *CentralityAnalyzer {
	return &CentralityAnalyzer{}
}

// Analyze computes all centrality metrics. A graph with zero or one node is
// a valid degenerate input and yields empty metric maps, not an error.
func (a *CentralityAnalyzer) Analyze(g *graph.Graph) *CentralityResult {
	result := &CentralityResult{
		Degree:      make(map[string]float64),
		Betweenness: make(map[string]float64),
		PageRank:    make(map[string]float64),
		TopByMetric: make(map[string][]string),
	}
	if g == nil || g.NodeCount() <= 1 {
		return result
	}

	result.Degree = a.degree(g)
	result.Betweenness = a.betweenness(g)
	result.PageRank = a.pageRank(g)

	result.TopByMetric[MetricDegree] = topNodes(result.Degree, topMetricCount)
	result.TopByMetric[MetricBetweenness] = topNodes(result.Betweenness, topMetricCount)
	result.TopByMetric[MetricPageRank] = topNodes(result.PageRank, topMetricCount)
	return result
}

// degree counts edge endpoints per node, normalized by n-1.
func (a *CentralityAnalyzer) degree(g *graph.Graph) map[string]float64 {
	counts := make(map[string]int, g.NodeCount())
	for _, e := range g.Edges {
		counts[e.SourceID]++
		counts[e.TargetID]++
	}
	norm := float64(g.NodeCount() - 1)
	scores := make(map[string]float64, g.NodeCount())
	for _, id := range g.NodeIDs() {
		scores[id] = float64(counts[id]) / norm
	}
	return scores
}

// betweenness implements Brandes' algorithm over the undirected weighted
// graph with edge cost 1/weight, so stronger relationships act as shorter
// hops. Scores are normalized by 2/((n-1)(n-2)) after halving the
// double-counted undirected accumulation.
func (a *CentralityAnalyzer) betweenness(g *graph.Graph) map[string]float64 {
	ids := g.NodeIDs()
	adj := g.Adjacency()

	centrality := make(map[string]float64, len(ids))
	for _, id := range ids {
		centrality[id] = 0
	}

	for _, source := range ids {
		// Single-source shortest paths with path counting.
		dist := make(map[string]float64, len(ids))
		sigma := make(map[string]float64, len(ids))
		preds := make(map[string][]string, len(ids))
		for _, id := range ids {
			dist[id] = math.Inf(1)
		}
		dist[source] = 0
		sigma[source] = 1

		var order []string // nodes in nondecreasing distance
		visited := make(map[string]bool, len(ids))

		pq := newNodeQueue()
		pq.push(source, 0)
		for pq.Len() > 0 {
			u := pq.pop()
			if visited[u] {
				continue
			}
			visited[u] = true
			order = append(order, u)

			for _, nb := range adj[u] {
				alt := dist[u] + nb.Cost
				switch {
				case alt < dist[nb.ID]:
					dist[nb.ID] = alt
					sigma[nb.ID] = sigma[u]
					preds[nb.ID] = []string{u}
					pq.push(nb.ID, alt)
				case alt == dist[nb.ID]:
					sigma[nb.ID] += sigma[u]
					preds[nb.ID] = append(preds[nb.ID], u)
				}
			}
		}

		// Dependency accumulation, reverse order of discovery.
		delta := make(map[string]float64, len(order))
		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != source {
				centrality[w] += delta[w]
			}
		}
	}

	n := float64(len(ids))
	// Each pair was counted from both endpoints; halve, then normalize.
	scale := 0.5 * 2.0 / ((n - 1) * (n - 2))
	if len(ids) <= 2 {
		scale = 0
	}
	for id := range centrality {
		centrality[id] *= scale
	}
	return centrality
}

// pageRank runs power iteration with damping 0.85 over the undirected
// graph (each edge contributes both directions). Dangling mass is
// redistributed uniformly so rank cannot leak from the graph.
func (a *CentralityAnalyzer) pageRank(g *graph.Graph) map[string]float64 {
	ids := g.NodeIDs()
	adj := g.Adjacency()
	n := float64(len(ids))

	rank := make(map[string]float64, len(ids))
	for _, id := range ids {
		rank[id] = 1.0 / n
	}

	next := make(map[string]float64, len(ids))
	for iter := 0; iter < pageRankMaxIter; iter++ {
		var danglingMass float64
		for _, id := range ids {
			if len(adj[id]) == 0 {
				danglingMass += rank[id]
			}
		}

		maxDiff := 0.0
		for _, id := range ids {
			sum := 0.0
			for _, nb := range adj[id] {
				if out := len(adj[nb.ID]); out > 0 {
					sum += rank[nb.ID] / float64(out)
				}
			}
			value := (1-pageRankDamping)/n + pageRankDamping*(sum+danglingMass/n)
			next[id] = value
			if diff := math.Abs(value - rank[id]); diff > maxDiff {
				maxDiff = diff
			}
		}

		rank, next = next, rank
		if maxDiff < pageRankConvergence {
			break
		}
	}
	return rank
}

// topNodes returns up to limit node ids by descending score, ties broken by
// ascending id.
func topNodes(scores map[string]float64, limit int) []string {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// nodeQueue is a minimal priority queue keyed by distance with node-id
// tie-breaking for deterministic pop order.
type nodeQueue struct {
	items []queueItem
}

type queueItem struct {
	id   string
	dist float64
}

func newNodeQueue() *nodeQueue { return &nodeQueue{} }

func (q *nodeQueue) Len() int { return len(q.items) }

func (q *nodeQueue) Less(i, j int) bool {
	if q.items[i].dist != q.items[j].dist {
		return q.items[i].dist < q.items[j].dist
	}
	return q.items[i].id < q.items[j].id
}

func (q *nodeQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *nodeQueue) Push(x interface{}) { q.items = append(q.items, x.(queueItem)) }

func (q *nodeQueue) Pop() interface{} {
	old := q.items
	item := old[len(old)-1]
	q.items = old[:len(old)-1]
	return item
}

func (q *nodeQueue) push(id string, dist float64) {
	heap.Push(q, queueItem{id: id, dist: dist})
}

func (q *nodeQueue) pop() string {
	return heap.Pop(q).(queueItem).id
}
