package services

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lattice-backend/internal/config"
	"lattice-backend/internal/domain/graph"
	domainservices "lattice-backend/internal/domain/services"
	engineErrors "lattice-backend/internal/errors"
	"lattice-backend/internal/infrastructure/cache"
	"lattice-backend/internal/infrastructure/observability"
)

// Cache namespaces, used as metric labels.
const (
	cacheNamespaceAnalytics   = "analytics"
	cacheNamespaceCommunities = "communities"
)

// AnalyticsOptions tunes one analytics request.
type AnalyticsOptions struct {
	MaxNodes        int
	IncludeEntities bool
	// Refresh bypasses the cache read but still stores the fresh result.
	Refresh bool
}

// AnalyticsResult is the full centrality report for one project graph.
type AnalyticsResult struct {
	ProjectID  string                            `json:"project_id"`
	NodeCount  int                               `json:"node_count"`
	EdgeCount  int                               `json:"edge_count"`
	Centrality *domainservices.CentralityResult  `json:"centrality"`
	Stats      GraphStats                        `json:"stats"`
}

// CommunitiesResult is the community partition for one project graph.
type CommunitiesResult struct {
	ProjectID   string            `json:"project_id"`
	NodeCount   int               `json:"node_count"`
	Communities []graph.Community `json:"communities"`
}

// GraphStats summarizes the shape of a built graph.
type GraphStats struct {
	NodeCount     int            `json:"node_count"`
	EdgeCount     int            `json:"edge_count"`
	NodesByType   map[string]int `json:"nodes_by_type"`
	Density       float64        `json:"density"`
	AverageDegree float64        `json:"average_degree"`
}

// Envelope wraps a cacheable payload with its provenance.
type Envelope[T any] struct {
	Data       T         `json:"data"`
	FromCache  bool      `json:"from_cache"`
	ComputedAt time.Time `json:"computed_at"`
}

// AnalyticsService runs centrality and community analytics over project
// graphs, caching results per project in two independent namespaces.
type AnalyticsService struct {
	builder  *GraphBuilder
	analyzer *domainservices.CentralityAnalyzer
	detector *domainservices.CommunityDetector

	analyticsCache *cache.SnapshotCache
	communityCache *cache.SnapshotCache
	cacheEnabled   bool

	defaultsMu sync.RWMutex
	defaults   config.GraphConfig

	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewAnalyticsService wires an AnalyticsService.
func NewAnalyticsService(
	builder *GraphBuilder,
	analyzer *domainservices.CentralityAnalyzer,
	detector *domainservices.CommunityDetector,
	analyticsCache *cache.SnapshotCache,
	communityCache *cache.SnapshotCache,
	cacheEnabled bool,
	defaults config.GraphConfig,
	metrics *observability.Metrics,
	tracer trace.Tracer,
	logger *zap.Logger,
) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		builder:        builder,
		analyzer:       analyzer,
		detector:       detector,
		analyticsCache: analyticsCache,
		communityCache: communityCache,
		cacheEnabled:   cacheEnabled,
		defaults:       defaults,
		metrics:        metrics,
		tracer:         tracer,
		logger:         logger,
	}
}

// SetDefaults replaces the graph defaults; called on config hot reload.
func (s *AnalyticsService) SetDefaults(defaults config.GraphConfig) {
	s.defaultsMu.Lock()
	s.defaults = defaults
	s.defaultsMu.Unlock()
}

func (s *AnalyticsService) graphDefaults() config.GraphConfig {
	s.defaultsMu.RLock()
	defer s.defaultsMu.RUnlock()
	return s.defaults
}

// normalize fills unset options from configured defaults.
func (s *AnalyticsService) normalize(opts AnalyticsOptions) AnalyticsOptions {
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = s.graphDefaults().DefaultMaxNodes
	}
	return opts
}

// ProjectAnalytics returns the centrality report for a project, serving a
// cached snapshot when one is fresh and opts.Refresh is false.
func (s *AnalyticsService) ProjectAnalytics(ctx context.Context, projectID string, opts AnalyticsOptions) (*Envelope[*AnalyticsResult], error) {
	ctx, span := s.tracer.Start(ctx, "analytics.ProjectAnalytics",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	opts = s.normalize(opts)

	if s.cacheEnabled && !opts.Refresh {
		if entry, ok := s.analyticsCache.Get(projectID); ok {
			s.metrics.ObserveCacheHit(cacheNamespaceAnalytics)
			return &Envelope[*AnalyticsResult]{
				Data:       entry.Payload.(*AnalyticsResult),
				FromCache:  true,
				ComputedAt: entry.ComputedAt,
			}, nil
		}
		s.metrics.ObserveCacheMiss(cacheNamespaceAnalytics)
	}

	g, err := s.builder.Build(ctx, projectID, BuildOptions{
		MaxNodes:        opts.MaxNodes,
		IncludeEntities: opts.IncludeEntities,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveGraphBuild(g.NodeCount())

	start := time.Now()
	centrality := s.analyzer.Analyze(g)
	s.metrics.ObserveAnalytics("centrality", time.Since(start))

	result := &AnalyticsResult{
		ProjectID:  projectID,
		NodeCount:  g.NodeCount(),
		EdgeCount:  g.EdgeCount(),
		Centrality: centrality,
		Stats:      statsOf(g),
	}

	computedAt := time.Now()
	if s.cacheEnabled {
		entry := s.analyticsCache.Set(projectID, result)
		computedAt = entry.ComputedAt
	}
	return &Envelope[*AnalyticsResult]{Data: result, ComputedAt: computedAt}, nil
}

// ProjectCommunities returns the Louvain partition for a project, cached
// independently from the centrality report.
func (s *AnalyticsService) ProjectCommunities(ctx context.Context, projectID string, opts AnalyticsOptions) (*Envelope[*CommunitiesResult], error) {
	ctx, span := s.tracer.Start(ctx, "analytics.ProjectCommunities",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	opts = s.normalize(opts)

	if s.cacheEnabled && !opts.Refresh {
		if entry, ok := s.communityCache.Get(projectID); ok {
			s.metrics.ObserveCacheHit(cacheNamespaceCommunities)
			return &Envelope[*CommunitiesResult]{
				Data:       entry.Payload.(*CommunitiesResult),
				FromCache:  true,
				ComputedAt: entry.ComputedAt,
			}, nil
		}
		s.metrics.ObserveCacheMiss(cacheNamespaceCommunities)
	}

	g, err := s.builder.Build(ctx, projectID, BuildOptions{
		MaxNodes:        opts.MaxNodes,
		IncludeEntities: opts.IncludeEntities,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveGraphBuild(g.NodeCount())

	start := time.Now()
	communities := s.detector.Detect(g)
	s.metrics.ObserveAnalytics("communities", time.Since(start))

	result := &CommunitiesResult{
		ProjectID:   projectID,
		NodeCount:   g.NodeCount(),
		Communities: communities,
	}

	computedAt := time.Now()
	if s.cacheEnabled {
		entry := s.communityCache.Set(projectID, result)
		computedAt = entry.ComputedAt
	}
	return &Envelope[*CommunitiesResult]{Data: result, ComputedAt: computedAt}, nil
}

// ProjectGraphStats builds the graph and returns shape statistics. Never
// cached: it is cheap relative to the algorithms and used for dashboards.
func (s *AnalyticsService) ProjectGraphStats(ctx context.Context, projectID string, opts AnalyticsOptions) (*GraphStats, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.ProjectGraphStats",
		trace.WithAttributes(attribute.String("project.id", projectID)))
	defer span.End()

	opts = s.normalize(opts)
	g, err := s.builder.Build(ctx, projectID, BuildOptions{
		MaxNodes:        opts.MaxNodes,
		IncludeEntities: opts.IncludeEntities,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stats := statsOf(g)
	return &stats, nil
}

// ShortestPath builds the project graph and runs weighted Dijkstra between
// two nodes. A missing endpoint is not-found; an unreachable pair is a
// valid negative answer carried as Found=false.
func (s *AnalyticsService) ShortestPath(ctx context.Context, projectID, fromID, toID string, opts AnalyticsOptions) (*PathResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.ShortestPath",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("path.from", fromID),
			attribute.String("path.to", toID),
		))
	defer span.End()

	if fromID == "" || toID == "" {
		return nil, engineErrors.Validation("PATH_ENDPOINTS_REQUIRED", "from and to node ids are required")
	}

	opts = s.normalize(opts)
	g, err := s.builder.Build(ctx, projectID, BuildOptions{
		MaxNodes:        opts.MaxNodes,
		IncludeEntities: opts.IncludeEntities,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if !g.HasNode(fromID) {
		return nil, engineErrors.NotFound("NODE_NOT_FOUND", "from node not in project graph").WithResource(fromID)
	}
	if !g.HasNode(toID) {
		return nil, engineErrors.NotFound("NODE_NOT_FOUND", "to node not in project graph").WithResource(toID)
	}

	finder := domainservices.NewPathFinder()
	result := finder.ShortestPath(g, fromID, toID)
	if result == nil {
		return &PathResponse{Found: false}, nil
	}
	return &PathResponse{Found: true, Path: result.Path, TotalWeight: result.TotalWeight}, nil
}

// PathResponse is the transport shape of a shortest-path query.
type PathResponse struct {
	Found       bool     `json:"found"`
	Path        []string `json:"path,omitempty"`
	TotalWeight float64  `json:"total_weight,omitempty"`
}

// RelatedInsights builds the project graph and walks typed edges outward
// from an insight. An unknown relationship type name is a validation error.
func (s *AnalyticsService) RelatedInsights(ctx context.Context, projectID, insightID string, depth int, relationshipTypes []string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "analytics.RelatedInsights",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("insight.id", insightID),
			attribute.Int("depth", depth),
		))
	defer span.End()

	defaults := s.graphDefaults()
	if depth > defaults.MaxDepth {
		return nil, engineErrors.Validation("DEPTH_TOO_LARGE", "depth exceeds the configured maximum")
	}

	allowed := make([]graph.RelationshipType, 0, len(relationshipTypes))
	for _, raw := range relationshipTypes {
		rt, err := graph.ParseRelationshipType(raw)
		if err != nil {
			return nil, engineErrors.Validation("RELATIONSHIP_TYPE_INVALID", err.Error())
		}
		allowed = append(allowed, rt)
	}
	if len(allowed) == 0 {
		allowed = []graph.RelationshipType{graph.RelationshipSimilarTo, graph.RelationshipRelatedTo}
	}

	g, err := s.builder.Build(ctx, projectID, BuildOptions{
		MaxNodes:        defaults.DefaultMaxNodes,
		IncludeEntities: true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !g.HasNode(insightID) {
		return nil, engineErrors.NotFound("INSIGHT_NOT_FOUND", "insight not in project graph").WithResource(insightID)
	}

	traversal := domainservices.NewRelatedTraversal()
	return traversal.Related(g, insightID, depth, allowed), nil
}

// InvalidateProject drops both cached namespaces for a project.
func (s *AnalyticsService) InvalidateProject(projectID string) {
	s.analyticsCache.Invalidate(projectID)
	s.communityCache.Invalidate(projectID)
	s.logger.Debug("project caches invalidated", zap.String("project_id", projectID))
}

// CacheStats reports both cache namespaces.
func (s *AnalyticsService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		cacheNamespaceAnalytics:   s.analyticsCache.GetStats(),
		cacheNamespaceCommunities: s.communityCache.GetStats(),
	}
}

func statsOf(g *graph.Graph) GraphStats {
	byType := make(map[string]int)
	for _, n := range g.Nodes {
		byType[string(n.Type)]++
	}
	n := float64(g.NodeCount())
	stats := GraphStats{
		NodeCount:   g.NodeCount(),
		EdgeCount:   g.EdgeCount(),
		NodesByType: byType,
	}
	if n > 1 {
		stats.Density = 2 * float64(g.EdgeCount()) / (n * (n - 1))
		stats.AverageDegree = 2 * float64(g.EdgeCount()) / n
	}
	return stats
}
