package graph

import "sort"

// Graph is the ephemeral, per-request aggregate the analytics algorithms
// run over. It is owned exclusively by the request that built it; nothing
// mutates a Graph after construction.
//
// Invariant: every edge's source and target id exist in Nodes. The builder
// drops edges touching excluded nodes rather than leaving them dangling.
type Graph struct {
	ProjectID string          `json:"project_id"`
	Nodes     map[string]Node `json:"nodes"`
	Edges     []Edge          `json:"edges"`
}

// New creates an empty graph for a project.
func New(projectID string) *Graph {
	return &Graph{
		ProjectID: projectID,
		Nodes:     make(map[string]Node),
	}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(n Node) {
	g.Nodes[n.ID] = n
}

// AddEdge appends an edge. Callers must ensure both endpoints exist; the
// builder enforces this before handing the graph to any algorithm.
func (g *Graph) AddEdge(e Edge) {
	g.Edges = append(g.Edges, e)
}

// HasNode reports whether the node id is present.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// NodeIDs returns all node ids in ascending order. Every algorithm iterates
// nodes through this method so results are deterministic for identical input.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Neighbor is one undirected adjacency entry.
type Neighbor struct {
	ID     string
	Weight float64
	Cost   float64
}

// Adjacency builds the undirected weighted adjacency list. Neighbor lists
// are sorted by id ascending for deterministic iteration.
func (g *Graph) Adjacency() map[string][]Neighbor {
	adj := make(map[string][]Neighbor, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.SourceID] = append(adj[e.SourceID], Neighbor{ID: e.TargetID, Weight: e.Weight, Cost: e.Cost()})
		adj[e.TargetID] = append(adj[e.TargetID], Neighbor{ID: e.SourceID, Weight: e.Weight, Cost: e.Cost()})
	}
	for id := range adj {
		ns := adj[id]
		sort.Slice(ns, func(i, j int) bool { return ns[i].ID < ns[j].ID })
	}
	return adj
}

// SubgraphByType returns a new graph restricted to nodes of the given type,
// keeping only edges whose both endpoints survive the restriction.
func (g *Graph) SubgraphByType(t NodeType) *Graph {
	sub := New(g.ProjectID)
	for id, n := range g.Nodes {
		if n.Type == t {
			sub.Nodes[id] = n
		}
	}
	for _, e := range g.Edges {
		if sub.HasNode(e.SourceID) && sub.HasNode(e.TargetID) {
			sub.Edges = append(sub.Edges, e)
		}
	}
	return sub
}
