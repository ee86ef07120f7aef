package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lattice-backend/internal/config"
	"lattice-backend/internal/domain/graph"
	engineErrors "lattice-backend/internal/errors"
	"lattice-backend/internal/repository"
)

// Search modes. SearchModeGraph runs semantic and keyword together and
// unions the results; "hybrid" is an accepted alias for it.
const (
	SearchModeGraph    = "graph"
	SearchModeHybrid   = "hybrid"
	SearchModeSemantic = "semantic"
	SearchModeKeyword  = "keyword"
)

// SearchRequest is one hybrid-search invocation.
type SearchRequest struct {
	ProjectID  string   `json:"projectId" validate:"required"`
	Query      string   `json:"query" validate:"required"`
	SearchType string   `json:"searchType,omitempty" validate:"omitempty,oneof=graph hybrid semantic keyword"`
	Limit      int      `json:"limit,omitempty" validate:"omitempty,min=1"`
	Threshold  *float64 `json:"threshold,omitempty" validate:"omitempty,min=0,max=1"`
}

// SearchResult is one matched insight. Score is nil for keyword-only
// matches, which always rank after every scored match.
type SearchResult struct {
	InsightID string   `json:"insight_id"`
	Label     string   `json:"label"`
	Score     *float64 `json:"score,omitempty"`
	Matched   string   `json:"matched"`
}

// SearchResponse carries the merged result list. Degraded is set when the
// embedding service failed and the search fell back to keyword-only.
type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Mode     string         `json:"mode"`
	Degraded bool           `json:"degraded"`
}

// SearchService performs hybrid search over a project's insights: semantic
// matching against stored embeddings plus keyword matching through the
// entity mention graph, merged with semantic scores taking precedence.
type SearchService struct {
	store    repository.GraphStore
	embedder repository.Embedder
	defaults config.SearchConfig
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewSearchService wires a SearchService.
func NewSearchService(store repository.GraphStore, embedder repository.Embedder, defaults config.SearchConfig, tracer trace.Tracer, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{store: store, embedder: embedder, defaults: defaults, tracer: tracer, logger: logger}
}

// Search runs the requested search mode. Semantic failures inside a union
// mode degrade the search to keyword-only instead of failing the request;
// semantic-only mode propagates the failure since there is nothing to
// degrade to.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	ctx, span := s.tracer.Start(ctx, "search.Search",
		trace.WithAttributes(
			attribute.String("project.id", req.ProjectID),
			attribute.String("search.type", req.SearchType),
		))
	defer span.End()

	if req.ProjectID == "" {
		return nil, engineErrors.Validation("PROJECT_ID_REQUIRED", "project id is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, engineErrors.Validation("QUERY_REQUIRED", "query cannot be empty")
	}

	mode := req.SearchType
	if mode == "" {
		mode = SearchModeGraph
	}
	union := mode == SearchModeGraph || mode == SearchModeHybrid
	if !union && mode != SearchModeSemantic && mode != SearchModeKeyword {
		return nil, engineErrors.Validation("SEARCH_TYPE_INVALID", "searchType must be graph, semantic, or keyword")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaults.DefaultLimit
	}
	if limit > s.defaults.MaxLimit {
		limit = s.defaults.MaxLimit
	}
	threshold := s.defaults.DefaultThreshold
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			return nil, engineErrors.Validation("THRESHOLD_INVALID", "threshold must be in [0,1]")
		}
		threshold = *req.Threshold
	}

	resp := &SearchResponse{Mode: mode, Results: []SearchResult{}}

	var semantic []SearchResult
	if union || mode == SearchModeSemantic {
		results, err := s.semanticSearch(ctx, req.ProjectID, req.Query, threshold)
		switch {
		case err == nil:
			semantic = results
		case mode == SearchModeSemantic:
			span.RecordError(err)
			return nil, err
		default:
			// Union modes degrade to keyword-only on embedding failure.
			s.logger.Warn("semantic search degraded to keyword-only",
				zap.String("project_id", req.ProjectID),
				zap.Error(err),
			)
			resp.Degraded = true
		}
	}

	var keyword []SearchResult
	if union || mode == SearchModeKeyword {
		results, err := s.keywordSearch(ctx, req.ProjectID, req.Query)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		keyword = results
	}

	resp.Results = mergeResults(semantic, keyword, limit)
	return resp, nil
}

// semanticSearch embeds the query and ranks stored insight embeddings by
// cosine similarity, keeping scores at or above threshold.
func (s *SearchService) semanticSearch(ctx context.Context, projectID, query string, threshold float64) ([]SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.ListInsightEmbeddings(ctx, projectID)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(stored))
	for _, item := range stored {
		score := cosineSimilarity(vector, item.Embedding)
		if score < threshold {
			continue
		}
		score = math.Round(score*1e6) / 1e6
		scoreCopy := score
		results = append(results, SearchResult{
			InsightID: item.InsightID,
			Label:     item.Label,
			Score:     &scoreCopy,
			Matched:   SearchModeSemantic,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if *results[i].Score != *results[j].Score {
			return *results[i].Score > *results[j].Score
		}
		return results[i].InsightID < results[j].InsightID
	})
	return results, nil
}

// keywordSearch matches query tokens against entity names and follows
// MENTIONS edges to the insights that mention them. Matches carry no score.
func (s *SearchService) keywordSearch(ctx context.Context, projectID, query string) ([]SearchResult, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []SearchResult{}, nil
	}

	entities, err := s.store.FindEntitiesByName(ctx, projectID, tokens)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return []SearchResult{}, nil
	}

	entityIDs := make([]string, 0, len(entities))
	for _, e := range entities {
		entityIDs = append(entityIDs, e.ID)
	}
	sort.Strings(entityIDs)

	edges, err := s.store.ListEdgesTouching(ctx, entityIDs)
	if err != nil {
		return nil, err
	}

	isEntity := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		isEntity[id] = true
	}

	seen := make(map[string]bool)
	results := []SearchResult{}
	for _, e := range edges {
		if e.RelationshipType != graph.RelationshipMentions {
			continue
		}
		// A mention edge links an insight to an entity in either orientation.
		var insightID string
		switch {
		case isEntity[e.TargetID] && e.SourceType == graph.NodeTypeInsight:
			insightID = e.SourceID
		case isEntity[e.SourceID] && e.TargetType == graph.NodeTypeInsight:
			insightID = e.TargetID
		default:
			continue
		}
		if seen[insightID] {
			continue
		}
		seen[insightID] = true
		results = append(results, SearchResult{
			InsightID: insightID,
			Matched:   SearchModeKeyword,
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].InsightID < results[j].InsightID })
	return results, nil
}

// mergeResults deduplicates across sources, preferring the semantic entry
// for an insight matched by both. Scored results keep their score order;
// scoreless results follow in ascending id order. The merged list is capped
// at limit.
func mergeResults(semantic, keyword []SearchResult, limit int) []SearchResult {
	merged := make([]SearchResult, 0, len(semantic)+len(keyword))
	seen := make(map[string]int, len(semantic))

	for _, r := range semantic {
		seen[r.InsightID] = len(merged)
		merged = append(merged, r)
	}
	for _, r := range keyword {
		if idx, ok := seen[r.InsightID]; ok {
			merged[idx].Matched = "both"
			continue
		}
		seen[r.InsightID] = len(merged)
		merged = append(merged, r)
	}

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// cosineSimilarity computes the cosine of the angle between two vectors;
// mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tokenize lowercases and splits a query on non-alphanumeric runs, dropping
// single-character tokens.
func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
