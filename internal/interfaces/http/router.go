// Package http assembles the chi router for the analytics API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"lattice-backend/internal/infrastructure/observability"
	"lattice-backend/internal/interfaces/http/handlers"
	"lattice-backend/internal/interfaces/http/middleware"
)

const requestTimeout = 30 * time.Second

// RouterDeps carries everything the router needs.
type RouterDeps struct {
	Analytics *handlers.AnalyticsHandler
	Search    *handlers.SearchHandler
	Health    *handlers.HealthHandler
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewRouter builds the full route tree with the middleware stack applied.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Middleware)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", deps.Health.Health)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/analytics", deps.Analytics.GetAnalytics)
			r.Get("/communities", deps.Analytics.GetCommunities)
			r.Get("/clusters", deps.Analytics.GetClusters)
			r.Get("/path", deps.Analytics.GetPath)
			r.Get("/graph/stats", deps.Analytics.GetGraphStats)
			r.Post("/rebuild", deps.Analytics.PostRebuild)
		})
		r.Get("/insights/{insightID}/related", deps.Analytics.GetRelated)
		r.Post("/search", deps.Search.Search)
		r.Get("/cache/stats", deps.Analytics.GetCacheStats)
	})

	return r
}
