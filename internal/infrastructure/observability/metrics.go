package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors on a private registry,
// so tests can create instances without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	graphBuildSize  prometheus.Histogram
	analyticsTime   *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lattice",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits by namespace.",
		}, []string{"namespace"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lattice",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses by namespace.",
		}, []string{"namespace"}),
		graphBuildSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lattice",
			Subsystem: "graph",
			Name:      "build_nodes",
			Help:      "Node count of built graphs.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000},
		}),
		analyticsTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lattice",
			Subsystem: "analytics",
			Name:      "compute_duration_seconds",
			Help:      "Analytics computation latency by stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCacheHit records a cache hit for a namespace.
func (m *Metrics) ObserveCacheHit(namespace string) {
	m.cacheHits.WithLabelValues(namespace).Inc()
}

// ObserveCacheMiss records a cache miss for a namespace.
func (m *Metrics) ObserveCacheMiss(namespace string) {
	m.cacheMisses.WithLabelValues(namespace).Inc()
}

// ObserveGraphBuild records the node count of a built graph.
func (m *Metrics) ObserveGraphBuild(nodeCount int) {
	m.graphBuildSize.Observe(float64(nodeCount))
}

// ObserveAnalytics records the duration of one analytics stage.
func (m *Metrics) ObserveAnalytics(stage string, d time.Duration) {
	m.analyticsTime.WithLabelValues(stage).Observe(d.Seconds())
}

// Middleware instruments each request with latency and count metrics. The
// route label uses the chi route pattern, not the raw path, to keep label
// cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(ww.Status())
		m.requestDuration.WithLabelValues(route, r.Method, status).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, r.Method, status).Inc()
	})
}
