// Package handlers contains the HTTP handlers for the analytics API. Every
// failure flows through the shared ErrorHandler so status mapping stays in
// one place.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appservices "lattice-backend/internal/application/services"
	engineErrors "lattice-backend/internal/errors"
)

// AnalyticsHandler serves the per-project analytics endpoints.
type AnalyticsHandler struct {
	analytics *appservices.AnalyticsService
	clusters  *appservices.ClusterService
	worker    *appservices.RebuildWorker
	errors    *engineErrors.ErrorHandler
	logger    *zap.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(
	analytics *appservices.AnalyticsService,
	clusters *appservices.ClusterService,
	worker *appservices.RebuildWorker,
	errors *engineErrors.ErrorHandler,
	logger *zap.Logger,
) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{
		analytics: analytics,
		clusters:  clusters,
		worker:    worker,
		errors:    errors,
		logger:    logger,
	}
}

// GetAnalytics handles GET /api/v1/projects/{projectID}/analytics.
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	opts, err := analyticsOptionsFromQuery(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	envelope, err := h.analytics.ProjectAnalytics(r.Context(), projectID, opts)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, envelope)
}

// GetCommunities handles GET /api/v1/projects/{projectID}/communities.
func (h *AnalyticsHandler) GetCommunities(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	opts, err := analyticsOptionsFromQuery(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	envelope, err := h.analytics.ProjectCommunities(r.Context(), projectID, opts)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, envelope)
}

// GetClusters handles GET /api/v1/projects/{projectID}/clusters.
func (h *AnalyticsHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	opts := appservices.ClusterOptions{
		Algorithm: r.URL.Query().Get("algorithm"),
	}
	if raw := r.URL.Query().Get("minSize"); raw != "" {
		minSize, err := strconv.Atoi(raw)
		if err != nil || minSize < 1 {
			h.errors.Handle(w, r, engineErrors.Validation("MIN_SIZE_INVALID", "minSize must be a positive integer"))
			return
		}
		opts.MinClusterSize = minSize
	}
	maxNodes, err := intQueryParam(r, "maxNodes")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	opts.MaxNodes = maxNodes

	result, err := h.clusters.ProjectClusters(r.Context(), projectID, opts)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}

// GetPath handles GET /api/v1/projects/{projectID}/path.
func (h *AnalyticsHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	fromID := r.URL.Query().Get("from")
	toID := r.URL.Query().Get("to")

	opts, err := analyticsOptionsFromQuery(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.analytics.ShortestPath(r.Context(), projectID, fromID, toID, opts)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}

// GetGraphStats handles GET /api/v1/projects/{projectID}/graph/stats.
func (h *AnalyticsHandler) GetGraphStats(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	opts, err := analyticsOptionsFromQuery(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	stats, err := h.analytics.ProjectGraphStats(r.Context(), projectID, opts)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, stats)
}

// GetRelated handles GET /api/v1/insights/{insightID}/related.
func (h *AnalyticsHandler) GetRelated(w http.ResponseWriter, r *http.Request) {
	insightID := chi.URLParam(r, "insightID")
	projectID := r.URL.Query().Get("projectID")
	if projectID == "" {
		h.errors.Handle(w, r, engineErrors.Validation("PROJECT_ID_REQUIRED", "projectID query parameter is required"))
		return
	}

	depth := 2
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.errors.Handle(w, r, engineErrors.Validation("DEPTH_INVALID", "depth must be an integer"))
			return
		}
		depth = parsed
	}

	var relationshipTypes []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		relationshipTypes = strings.Split(raw, ",")
	}

	related, err := h.analytics.RelatedInsights(r.Context(), projectID, insightID, depth, relationshipTypes)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"insight_id": insightID,
		"depth":      depth,
		"related":    related,
	})
}

// PostRebuild handles POST /api/v1/projects/{projectID}/rebuild. It
// invalidates and asynchronously recomputes the project's caches.
func (h *AnalyticsHandler) PostRebuild(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		h.errors.Handle(w, r, engineErrors.Validation("PROJECT_ID_REQUIRED", "project id is required"))
		return
	}

	taskID := h.worker.Enqueue(projectID)
	if taskID == "" {
		// Already queued or queue full; either way the caches will refresh.
		respondJSON(w, h.logger, http.StatusAccepted, map[string]string{"status": "already_queued"})
		return
	}
	respondJSON(w, h.logger, http.StatusAccepted, map[string]string{
		"status":  "queued",
		"task_id": taskID,
	})
}

// GetCacheStats handles GET /api/v1/cache/stats.
func (h *AnalyticsHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.analytics.CacheStats())
}

// analyticsOptionsFromQuery parses the shared graph-shaping parameters.
func analyticsOptionsFromQuery(r *http.Request) (appservices.AnalyticsOptions, error) {
	opts := appservices.AnalyticsOptions{
		IncludeEntities: r.URL.Query().Get("includeEntities") != "false",
		Refresh:         r.URL.Query().Get("refresh") == "true",
	}
	maxNodes, err := intQueryParam(r, "maxNodes")
	if err != nil {
		return opts, err
	}
	opts.MaxNodes = maxNodes
	return opts, nil
}

// intQueryParam parses an optional positive integer parameter; absence
// yields zero so the service applies its default.
func intQueryParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, engineErrors.Validation("PARAM_INVALID", name+" must be a positive integer")
	}
	return value, nil
}

// respondJSON writes a JSON payload with the given status.
func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
