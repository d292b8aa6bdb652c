package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the instruments exposed on
// /metrics.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	dbDuration    *prometheus.HistogramVec
	cacheOps      *prometheus.CounterVec
	decisionsMade *prometheus.CounterVec
	goroutines    prometheus.GaugeFunc
}

// NewMetricsService builds the registry and registers all collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	s := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests processed, labelled by method, path and status.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distribution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		dbDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query latency distribution by operation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"operation"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		decisionsMade: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "request_decisions_total",
			Help: "Procedural request decisions recorded, labelled by outcome.",
		}, []string{"outcome"}),
	}

	s.goroutines = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_count",
		Help: "Current number of goroutines.",
	}, func() float64 { return float64(runtime.NumGoroutine()) })

	registry.MustRegister(
		s.httpRequests,
		s.httpDuration,
		s.dbDuration,
		s.cacheOps,
		s.decisionsMade,
		s.goroutines,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return s
}

// Handler exposes the registry over HTTP.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveDBQuery records one database query latency sample.
func (s *MetricsService) ObserveDBQuery(operation string, duration time.Duration) {
	s.dbDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheOperation counts one cache operation outcome.
func (s *MetricsService) RecordCacheOperation(operation, outcome string) {
	s.cacheOps.WithLabelValues(operation, outcome).Inc()
}

// RecordDecision counts one recorded tribunal decision.
func (s *MetricsService) RecordDecision(outcome string) {
	s.decisionsMade.WithLabelValues(outcome).Inc()
}
