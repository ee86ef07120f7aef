package graph

// Community is one cell of a Louvain partition: a set of densely
// interconnected nodes. Communities from a single detection run partition
// the graph's node set exactly; isolated nodes form singleton communities.
type Community struct {
	ID           string   `json:"id"`
	NodeIDs      []string `json:"node_ids"`
	Size         int      `json:"size"`
	Cohesion     float64  `json:"cohesion"`
	DominantType NodeType `json:"dominant_type,omitempty"`
}

// Cluster is a grouping of insight nodes meeting a minimum-size threshold,
// produced either by connected components or by community membership.
type Cluster struct {
	ID                string   `json:"id"`
	NodeIDs           []string `json:"node_ids"`
	Size              int      `json:"size"`
	AverageSimilarity float64  `json:"average_similarity"`
}
