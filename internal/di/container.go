// Package di wires the engine's components. Construction is explicit and
// ordered; anything that fails here fails startup.
package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	appservices "lattice-backend/internal/application/services"
	"lattice-backend/internal/config"
	domainservices "lattice-backend/internal/domain/services"
	engineErrors "lattice-backend/internal/errors"
	"lattice-backend/internal/infrastructure/cache"
	"lattice-backend/internal/infrastructure/embeddings"
	"lattice-backend/internal/infrastructure/observability"
	supastore "lattice-backend/internal/infrastructure/persistence/supabase"
	httpiface "lattice-backend/internal/interfaces/http"
	"lattice-backend/internal/interfaces/http/handlers"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Container holds the fully wired application.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Router  http.Handler
	Worker  *appservices.RebuildWorker
	Tracing *observability.TracerProvider

	analyticsCache *cache.SnapshotCache
	communityCache *cache.SnapshotCache
	watcher        *config.Watcher
}

// NewContainer builds the application from configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	logger, err := newLogger(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	tracing := observability.NewNoopTracerProvider()
	if cfg.Tracing.Enabled {
		tracing, err = observability.InitTracing("lattice-analytics", string(cfg.Environment), cfg.Tracing.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}
	tracer := tracing.Tracer()

	supaClient, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.APIKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	store := supastore.NewGraphStore(supaClient, logger)
	embedder := embeddings.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)

	metrics := observability.NewMetrics()
	analyticsCache := cache.NewSnapshotCache(cfg.Cache.AnalyticsTTL, logger)
	communityCache := cache.NewSnapshotCache(cfg.Cache.CommunityTTL, logger)
	if cfg.Cache.Enabled {
		analyticsCache.StartSweep(cfg.Cache.SweepInterval)
		communityCache.StartSweep(cfg.Cache.SweepInterval)
	}

	builder := appservices.NewGraphBuilder(store, logger)
	analyzer := domainservices.NewCentralityAnalyzer()
	detector := domainservices.NewCommunityDetector()
	clusterFinder := domainservices.NewClusterFinder(detector)

	analyticsService := appservices.NewAnalyticsService(
		builder, analyzer, detector,
		analyticsCache, communityCache, cfg.Cache.Enabled,
		cfg.Graph, metrics, tracer, logger,
	)
	clusterService := appservices.NewClusterService(builder, clusterFinder, cfg.Graph, tracer, logger)
	searchService := appservices.NewSearchService(store, embedder, cfg.Search, tracer, logger)
	worker := appservices.NewRebuildWorker(analyticsService, logger)

	errorHandler := engineErrors.NewErrorHandler(logger)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, clusterService, worker, errorHandler, logger)
	searchHandler := handlers.NewSearchHandler(searchService, errorHandler, logger)
	healthHandler := handlers.NewHealthHandler(Version, logger)

	router := httpiface.NewRouter(httpiface.RouterDeps{
		Analytics: analyticsHandler,
		Search:    searchHandler,
		Health:    healthHandler,
		Metrics:   metrics,
		Logger:    logger,
	})

	c := &Container{
		Config:         cfg,
		Logger:         logger,
		Router:         router,
		Worker:         worker,
		Tracing:        tracing,
		analyticsCache: analyticsCache,
		communityCache: communityCache,
	}

	// Hot-reload cache TTLs and graph defaults in development.
	if cfg.Environment == config.Development {
		watcher, err := config.NewWatcher(cfg, logger)
		if err != nil {
			logger.Warn("config watcher unavailable", zap.Error(err))
		} else if watcher != nil {
			watcher.OnReload(func(updated *config.Config) {
				analyticsCache.SetTTL(updated.Cache.AnalyticsTTL)
				communityCache.SetTTL(updated.Cache.CommunityTTL)
				analyticsService.SetDefaults(updated.Graph)
				clusterService.SetDefaults(updated.Graph)
			})
			c.watcher = watcher
		}
	}

	return c, nil
}

// Shutdown releases background resources.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Worker.Stop()
	c.analyticsCache.StopSweep()
	c.communityCache.StopSweep()
	if c.watcher != nil {
		c.watcher.Stop()
	}
	if err := c.Tracing.Shutdown(ctx); err != nil {
		return err
	}
	return c.Logger.Sync()
}

func newLogger(env config.Environment) (*zap.Logger, error) {
	if env == config.Production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
