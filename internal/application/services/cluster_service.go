package services

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"lattice-backend/internal/config"
	"lattice-backend/internal/domain/graph"
	domainservices "lattice-backend/internal/domain/services"
	engineErrors "lattice-backend/internal/errors"
)

// Cluster algorithm selectors.
const (
	AlgorithmComponents = "components"
	AlgorithmLouvain    = "louvain"
)

const defaultMinClusterSize = 2

// ClusterOptions tunes one clustering request.
type ClusterOptions struct {
	// Algorithm picks the strategy; empty means AlgorithmComponents.
	Algorithm string
	// MinClusterSize drops smaller groups; zero means the default of 2.
	MinClusterSize int
	MaxNodes       int
}

// ClustersResult is the clustering report for one project graph.
type ClustersResult struct {
	ProjectID string          `json:"project_id"`
	Algorithm string          `json:"algorithm"`
	Clusters  []graph.Cluster `json:"clusters"`
}

// ClusterService groups a project's insights into clusters using either
// connected components or Louvain community membership.
type ClusterService struct {
	builder *GraphBuilder
	finder  *domainservices.ClusterFinder
	tracer  trace.Tracer
	logger  *zap.Logger

	defaultsMu sync.RWMutex
	defaults   config.GraphConfig
}

// NewClusterService wires a ClusterService.
func NewClusterService(builder *GraphBuilder, finder *domainservices.ClusterFinder, defaults config.GraphConfig, tracer trace.Tracer, logger *zap.Logger) *ClusterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClusterService{builder: builder, finder: finder, defaults: defaults, tracer: tracer, logger: logger}
}

// SetDefaults replaces the graph defaults; called on config hot reload.
func (s *ClusterService) SetDefaults(defaults config.GraphConfig) {
	s.defaultsMu.Lock()
	s.defaults = defaults
	s.defaultsMu.Unlock()
}

// ProjectClusters returns insight clusters for a project. Unknown algorithm
// names are rejected rather than silently falling back.
func (s *ClusterService) ProjectClusters(ctx context.Context, projectID string, opts ClusterOptions) (*ClustersResult, error) {
	ctx, span := s.tracer.Start(ctx, "clusters.ProjectClusters",
		trace.WithAttributes(
			attribute.String("project.id", projectID),
			attribute.String("algorithm", opts.Algorithm),
		))
	defer span.End()

	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = AlgorithmComponents
	}
	if algorithm != AlgorithmComponents && algorithm != AlgorithmLouvain {
		return nil, engineErrors.Validation("ALGORITHM_UNKNOWN", "algorithm must be components or louvain")
	}

	minSize := opts.MinClusterSize
	if minSize <= 0 {
		minSize = defaultMinClusterSize
	}
	maxNodes := opts.MaxNodes
	if maxNodes <= 0 {
		s.defaultsMu.RLock()
		maxNodes = s.defaults.DefaultMaxNodes
		s.defaultsMu.RUnlock()
	}

	g, err := s.builder.Build(ctx, projectID, BuildOptions{
		MaxNodes:        maxNodes,
		IncludeEntities: algorithm == AlgorithmLouvain,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var clusters []graph.Cluster
	switch algorithm {
	case AlgorithmLouvain:
		clusters = s.finder.FindByCommunities(g, minSize)
	default:
		clusters = s.finder.FindComponents(g, minSize)
	}

	return &ClustersResult{
		ProjectID: projectID,
		Algorithm: algorithm,
		Clusters:  clusters,
	}, nil
}
