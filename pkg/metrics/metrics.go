// Package metrics
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patchbay"

// Buckets tuned for LLM request latencies (100ms to 30s) and per-request
// token counts (100 to 100K).
var (
	durationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0}
	tokenBuckets    = []float64{100, 500, 1000, 5000, 10000, 50000, 100000}
)

// Recorder collects gateway metrics into its own Prometheus registry.
// A disabled recorder registers nothing and drops every observation, so
// callers never need to branch on whether metrics are on.
type Recorder struct {
	enabled  bool
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestTokens   *prometheus.HistogramVec
	rateLimited     prometheus.Counter
	activeStreams   prometheus.Gauge
}

// NewRecorder creates a recorder. When enabled is false the registry stays
// empty and all recording methods are no-ops.
func NewRecorder(enabled bool) *Recorder {
	r := &Recorder{
		enabled:  enabled,
		registry: prometheus.NewRegistry(),
	}

	if !enabled {
		return r
	}

	r.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of gateway requests by route and HTTP status.",
		},
		[]string{"route", "status"},
	)

	r.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway requests in seconds.",
			Buckets:   durationBuckets,
		},
		[]string{"route"},
	)

	r.requestTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_tokens",
			Help:      "Per-request token counts by model and direction.",
			Buckets:   tokenBuckets,
		},
		[]string{"direction", "model"},
	)

	r.rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
	)

	r.activeStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of SSE streams currently open.",
		},
	)

	r.registry.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.requestTokens,
		r.rateLimited,
		r.activeStreams,
	)

	return r
}

// RecordRequest records a completed request for a route with its HTTP status
// and total duration.
func (r *Recorder) RecordRequest(route, status string, duration time.Duration) {
	if !r.enabled {
		return
	}

	r.requestsTotal.WithLabelValues(route, status).Inc()
	r.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordTokens records prompt and completion token counts for one request.
// Zero counts are skipped so estimates-only requests don't pollute the
// distribution.
func (r *Recorder) RecordTokens(model string, promptTokens, completionTokens int) {
	if !r.enabled {
		return
	}

	if promptTokens > 0 {
		r.requestTokens.WithLabelValues("prompt", model).Observe(float64(promptTokens))
	}
	if completionTokens > 0 {
		r.requestTokens.WithLabelValues("completion", model).Observe(float64(completionTokens))
	}
}

// RecordRateLimited records a request rejected by the rate limiter.
func (r *Recorder) RecordRateLimited() {
	if !r.enabled {
		return
	}

	r.rateLimited.Inc()
}

// StreamStarted marks an SSE stream as open.
func (r *Recorder) StreamStarted() {
	if !r.enabled {
		return
	}

	r.activeStreams.Inc()
}

// StreamEnded marks an SSE stream as closed.
func (r *Recorder) StreamEnded() {
	if !r.enabled {
		return
	}

	r.activeStreams.Dec()
}

// Registry returns the recorder's Prometheus registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the registry in Prometheus
// exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
