package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_jobs_total",
			Help: "Total number of jobs by lifecycle transition",
		},
		[]string{"status"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Number of queued jobs per agent",
		},
		[]string{"agent_id"},
	)

	agentsKnown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_agents_known",
			Help: "Number of agents the registry has ever seen",
		},
	)
)

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics for WebSocket upgrade requests
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordJobQueued counts a freshly enqueued job.
func RecordJobQueued() {
	jobsTotal.WithLabelValues("queued").Inc()
}

// RecordJobDispatched counts jobs handed to an agent.
func RecordJobDispatched(n int) {
	jobsTotal.WithLabelValues("dispatched").Add(float64(n))
}

// RecordJobFinished counts a terminal transition ("completed" or "failed").
func RecordJobFinished(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}

// GaugeRecorder feeds registry-derived gauges from the stats monitor.
type GaugeRecorder struct{}

func (GaugeRecorder) SetQueueDepth(agentID string, depth int) {
	queueDepth.WithLabelValues(agentID).Set(float64(depth))
}

func (GaugeRecorder) SetKnownAgents(count int) {
	agentsKnown.Set(float64(count))
}
