// Package supabase implements the GraphStore contract against the
// project's Supabase (PostgREST) tables. Rows are decoded into the typed
// domain model at this boundary: an unknown node type or relationship
// discriminator fails the read immediately instead of propagating untyped
// data into the engine.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	engineErrors "lattice-backend/internal/errors"
	"lattice-backend/internal/domain/graph"
	"lattice-backend/internal/repository"
)

// Table names in the relational store.
const (
	tableInsights   = "insight_nodes"
	tableEntities   = "entity_nodes"
	tableChallenges = "challenge_nodes"
	tableSyntheses  = "synthesis_nodes"
	tableEdges      = "graph_edges"
	tableEmbeddings = "insight_embeddings"
)

// GraphStore is the Supabase-backed implementation of
// repository.GraphStore.
type GraphStore struct {
	client *supabase.Client
	logger *zap.Logger
}

// NewGraphStore creates a GraphStore over an initialized Supabase client.
func NewGraphStore(client *supabase.Client, logger *zap.Logger) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{client: client, logger: logger}
}

var _ repository.GraphStore = (*GraphStore)(nil)

// nodeRow is the raw relational shape shared by all node tables.
type nodeRow struct {
	ID         string                 `json:"id"`
	ProjectID  string                 `json:"project_id"`
	Type       string                 `json:"node_type"`
	Label      string                 `json:"label"`
	CreatedAt  time.Time              `json:"created_at"`
	Attributes map[string]interface{} `json:"attributes"`
}

// edgeRow is the raw relational shape of the edge table.
type edgeRow struct {
	SourceID         string                 `json:"source_id"`
	SourceType       string                 `json:"source_type"`
	TargetID         string                 `json:"target_id"`
	TargetType       string                 `json:"target_type"`
	RelationshipType string                 `json:"relationship_type"`
	SimilarityScore  *float64               `json:"similarity_score"`
	Confidence       *float64               `json:"confidence"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// embeddingRow is the raw relational shape of the embeddings table.
type embeddingRow struct {
	InsightID string    `json:"insight_id"`
	Label     string    `json:"label"`
	Embedding []float32 `json:"embedding"`
}

// ListInsightNodes returns all insight nodes for a project.
func (s *GraphStore) ListInsightNodes(ctx context.Context, projectID string) ([]graph.Node, error) {
	data, _, err := s.client.From(tableInsights).
		Select("*", "", false).
		Eq("project_id", projectID).
		Execute()
	if err != nil {
		return nil, s.upstream("ListInsightNodes", err)
	}
	return s.decodeNodes(data, graph.NodeTypeInsight)
}

// ListEdgesTouching returns all edges with at least one endpoint in nodeIDs.
func (s *GraphStore) ListEdgesTouching(ctx context.Context, nodeIDs []string) ([]graph.Edge, error) {
	if len(nodeIDs) == 0 {
		return []graph.Edge{}, nil
	}
	idList := strings.Join(nodeIDs, ",")
	data, _, err := s.client.From(tableEdges).
		Select("*", "", false).
		Or(fmt.Sprintf("source_id.in.(%s),target_id.in.(%s)", idList, idList), "").
		Execute()
	if err != nil {
		return nil, s.upstream("ListEdgesTouching", err)
	}
	return s.decodeEdges(data)
}

// ListEntityNodes returns entity nodes by id.
func (s *GraphStore) ListEntityNodes(ctx context.Context, ids []string) ([]graph.Node, error) {
	return s.listNodesByID(tableEntities, graph.NodeTypeEntity, ids)
}

// ListChallengeNodes returns challenge nodes by id.
func (s *GraphStore) ListChallengeNodes(ctx context.Context, ids []string) ([]graph.Node, error) {
	return s.listNodesByID(tableChallenges, graph.NodeTypeChallenge, ids)
}

// ListSynthesisNodes returns synthesis nodes by id.
func (s *GraphStore) ListSynthesisNodes(ctx context.Context, ids []string) ([]graph.Node, error) {
	return s.listNodesByID(tableSyntheses, graph.NodeTypeSynthesis, ids)
}

// FindEntitiesByName returns entity nodes whose label matches any token.
func (s *GraphStore) FindEntitiesByName(ctx context.Context, projectID string, tokens []string) ([]graph.Node, error) {
	if len(tokens) == 0 {
		return []graph.Node{}, nil
	}
	filters := make([]string, 0, len(tokens))
	for _, token := range tokens {
		filters = append(filters, fmt.Sprintf("label.ilike.*%s*", token))
	}
	data, _, err := s.client.From(tableEntities).
		Select("*", "", false).
		Eq("project_id", projectID).
		Or(strings.Join(filters, ","), "").
		Execute()
	if err != nil {
		return nil, s.upstream("FindEntitiesByName", err)
	}
	return s.decodeNodes(data, graph.NodeTypeEntity)
}

// ListInsightEmbeddings returns stored embedding vectors for a project.
func (s *GraphStore) ListInsightEmbeddings(ctx context.Context, projectID string) ([]repository.InsightEmbedding, error) {
	data, _, err := s.client.From(tableEmbeddings).
		Select("insight_id,label,embedding", "", false).
		Eq("project_id", projectID).
		Execute()
	if err != nil {
		return nil, s.upstream("ListInsightEmbeddings", err)
	}
	var rows []embeddingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, engineErrors.Internal("EMBEDDING_DECODE", "failed to decode embedding rows").WithCause(err)
	}
	out := make([]repository.InsightEmbedding, 0, len(rows))
	for _, row := range rows {
		out = append(out, repository.InsightEmbedding{
			InsightID: row.InsightID,
			Label:     row.Label,
			Embedding: row.Embedding,
		})
	}
	return out, nil
}

func (s *GraphStore) listNodesByID(table string, nodeType graph.NodeType, ids []string) ([]graph.Node, error) {
	if len(ids) == 0 {
		return []graph.Node{}, nil
	}
	data, _, err := s.client.From(table).
		Select("*", "", false).
		In("id", ids).
		Execute()
	if err != nil {
		return nil, s.upstream("listNodesByID:"+table, err)
	}
	return s.decodeNodes(data, nodeType)
}

// decodeNodes converts raw rows into validated domain nodes. The table's
// own type is the fallback when a row omits the discriminator column.
func (s *GraphStore) decodeNodes(data []byte, fallbackType graph.NodeType) ([]graph.Node, error) {
	var rows []nodeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, engineErrors.Internal("NODE_DECODE", "failed to decode node rows").WithCause(err)
	}
	nodes := make([]graph.Node, 0, len(rows))
	for _, row := range rows {
		nodeType := fallbackType
		if row.Type != "" {
			parsed, err := graph.ParseNodeType(row.Type)
			if err != nil {
				return nil, engineErrors.Internal("NODE_TYPE_INVALID",
					fmt.Sprintf("row %s carries an invalid node type", row.ID)).WithCause(err)
			}
			nodeType = parsed
		}
		node := graph.Node{
			ID:         row.ID,
			Type:       nodeType,
			Label:      row.Label,
			CreatedAt:  row.CreatedAt,
			Attributes: row.Attributes,
		}
		if err := node.Validate(); err != nil {
			return nil, engineErrors.Internal("NODE_INVALID", "node row failed validation").WithCause(err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// decodeEdges converts raw rows into validated domain edges, deriving the
// weight from similarity_score, then confidence, then the default.
func (s *GraphStore) decodeEdges(data []byte) ([]graph.Edge, error) {
	var rows []edgeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, engineErrors.Internal("EDGE_DECODE", "failed to decode edge rows").WithCause(err)
	}
	edges := make([]graph.Edge, 0, len(rows))
	for _, row := range rows {
		relType, err := graph.ParseRelationshipType(row.RelationshipType)
		if err != nil {
			return nil, engineErrors.Internal("EDGE_TYPE_INVALID",
				fmt.Sprintf("edge %s->%s carries an invalid relationship type", row.SourceID, row.TargetID)).WithCause(err)
		}
		sourceType, err := graph.ParseNodeType(row.SourceType)
		if err != nil {
			return nil, engineErrors.Internal("EDGE_ENDPOINT_INVALID", "edge source type invalid").WithCause(err)
		}
		targetType, err := graph.ParseNodeType(row.TargetType)
		if err != nil {
			return nil, engineErrors.Internal("EDGE_ENDPOINT_INVALID", "edge target type invalid").WithCause(err)
		}
		edge := graph.Edge{
			SourceID:         row.SourceID,
			SourceType:       sourceType,
			TargetID:         row.TargetID,
			TargetType:       targetType,
			RelationshipType: relType,
			Weight:           deriveWeight(row),
			Confidence:       row.Confidence,
			Metadata:         row.Metadata,
		}
		if err := edge.Validate(); err != nil {
			return nil, engineErrors.Internal("EDGE_INVALID", "edge row failed validation").WithCause(err)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// deriveWeight picks the edge weight: similarity score first, confidence
// second, default last. Values are clamped into [0,1].
func deriveWeight(row edgeRow) float64 {
	var w float64
	switch {
	case row.SimilarityScore != nil:
		w = *row.SimilarityScore
	case row.Confidence != nil:
		w = *row.Confidence
	default:
		return graph.DefaultEdgeWeight
	}
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func (s *GraphStore) upstream(operation string, err error) error {
	s.logger.Error("graph store request failed",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return engineErrors.Upstream("STORE_UNREACHABLE", "graph store request failed").
		WithOperation(operation).
		WithCause(err)
}
