// Package metrics exposes Prometheus instrumentation for the insights API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/generative"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. It satisfies cache.Observer and
// generative.Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	cacheCorrupt *prometheus.CounterVec
	generative   *prometheus.CounterVec
	genDuration  *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
	checkins     *prometheus.CounterVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecotrack_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecotrack_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecotrack_insight_cache_lookups_total",
			Help: "Insight cache lookups by feature and result (hit or miss).",
		}, []string{"feature", "result"}),
		cacheCorrupt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecotrack_insight_cache_corrupt_total",
			Help: "Cached entries discarded because they could not be decoded.",
		}, []string{"feature"}),
		generative: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecotrack_generative_attempts_total",
			Help: "Generative enrichment attempts by feature and outcome.",
		}, []string{"feature", "outcome"}),
		genDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecotrack_generative_duration_seconds",
			Help:    "Duration of generative enrichment attempts.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"feature"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ecotrack_breaker_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half open, 2 open).",
		}, []string{"target"}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecotrack_checkin_events_total",
			Help: "Challenge check-in events consumed by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.cacheLookups,
		m.cacheCorrupt,
		m.generative,
		m.genDuration,
		m.breakerState,
		m.checkins,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit(feature string) {
	m.cacheLookups.WithLabelValues(feature, "hit").Inc()
}

func (m *Metrics) CacheMiss(feature string) {
	m.cacheLookups.WithLabelValues(feature, "miss").Inc()
}

func (m *Metrics) CacheCorrupt(feature string) {
	m.cacheCorrupt.WithLabelValues(feature).Inc()
}

func (m *Metrics) GenerativeAttempt(feature, outcome string, elapsed time.Duration) {
	m.generative.WithLabelValues(feature, outcome).Inc()
	if outcome != string(generative.ReasonDisabled) {
		m.genDuration.WithLabelValues(feature).Observe(elapsed.Seconds())
	}
}

// BreakerStateChanged can be registered with Breaker.OnStateChange
func (m *Metrics) BreakerStateChanged(name string, state generative.BreakerState) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// CheckinProcessed counts one consumed check-in event
func (m *Metrics) CheckinProcessed(result string) {
	m.checkins.WithLabelValues(result).Inc()
}

// Middleware records request counts and durations by route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
