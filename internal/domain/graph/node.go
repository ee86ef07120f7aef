// Package graph defines the domain model for the Lattice knowledge graph:
// typed nodes, weighted edges, the per-request Graph aggregate, and the
// derived analytics value objects (Community, Cluster).
//
// The model is deliberately a tagged-variant design: every node and edge
// carries an explicit type discriminator that is validated at the adapter
// boundary, so malformed rows fail fast instead of propagating untyped.
package graph

import (
	"fmt"
	"time"
)

// NodeType discriminates the four kinds of vertices in a project graph.
type NodeType string

const (
	NodeTypeInsight   NodeType = "insight"
	NodeTypeEntity    NodeType = "entity"
	NodeTypeChallenge NodeType = "challenge"
	NodeTypeSynthesis NodeType = "synthesis"
)

// ParseNodeType validates a raw type discriminator.
func ParseNodeType(raw string) (NodeType, error) {
	switch NodeType(raw) {
	case NodeTypeInsight, NodeTypeEntity, NodeTypeChallenge, NodeTypeSynthesis:
		return NodeType(raw), nil
	default:
		return "", fmt.Errorf("unknown node type %q", raw)
	}
}

// Node is a graph vertex: an insight, entity, challenge, or synthesis.
// IDs are globally unique across types within a project. Type is immutable
// once created.
type Node struct {
	ID         string                 `json:"id"`
	Type       NodeType               `json:"type"`
	Label      string                 `json:"label"`
	CreatedAt  time.Time              `json:"created_at"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Validate enforces the invariants required of every node entering a graph.
func (n Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if _, err := ParseNodeType(string(n.Type)); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	return nil
}
