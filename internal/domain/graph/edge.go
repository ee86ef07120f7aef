package graph

import "fmt"

// RelationshipType discriminates the typed relationships between nodes.
type RelationshipType string

const (
	RelationshipSimilarTo   RelationshipType = "SIMILAR_TO"
	RelationshipRelatedTo   RelationshipType = "RELATED_TO"
	RelationshipMentions    RelationshipType = "MENTIONS"
	RelationshipSynthesizes RelationshipType = "SYNTHESIZES"
	RelationshipContains    RelationshipType = "CONTAINS"
)

// DefaultEdgeWeight is assumed when a row carries neither a similarity
// score nor a confidence value.
const DefaultEdgeWeight = 0.5

// ParseRelationshipType validates a raw relationship discriminator.
func ParseRelationshipType(raw string) (RelationshipType, error) {
	switch RelationshipType(raw) {
	case RelationshipSimilarTo, RelationshipRelatedTo, RelationshipMentions,
		RelationshipSynthesizes, RelationshipContains:
		return RelationshipType(raw), nil
	default:
		return "", fmt.Errorf("unknown relationship type %q", raw)
	}
}

// Edge is a typed, weighted relationship between two nodes. Edges are
// treated as undirected by the analytics algorithms but keep their
// source/target orientation for directed traversal.
type Edge struct {
	SourceID         string                 `json:"source_id"`
	SourceType       NodeType               `json:"source_type"`
	TargetID         string                 `json:"target_id"`
	TargetType       NodeType               `json:"target_type"`
	RelationshipType RelationshipType       `json:"relationship_type"`
	Weight           float64                `json:"weight"`
	Confidence       *float64               `json:"confidence,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Validate enforces the invariants required of every edge entering a graph.
func (e Edge) Validate() error {
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("edge endpoints cannot be empty")
	}
	if _, err := ParseRelationshipType(string(e.RelationshipType)); err != nil {
		return err
	}
	if e.Weight < 0 || e.Weight > 1 {
		return fmt.Errorf("edge %s->%s: weight %f outside [0,1]", e.SourceID, e.TargetID, e.Weight)
	}
	return nil
}

// Cost converts the edge weight into a path cost: stronger relationships
// act as shorter hops. Non-positive weights fall back to the default so a
// zero-weight row cannot produce an infinite cost.
func (e Edge) Cost() float64 {
	w := e.Weight
	if w <= 0 {
		w = DefaultEdgeWeight
	}
	return 1.0 / w
}
