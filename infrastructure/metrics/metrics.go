package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the publishing service.
// All Record* methods are safe on a nil receiver.
type Metrics struct {
	// GraphCalls counts every HTTP attempt against a Graph host
	GraphCalls *prometheus.CounterVec
	// GraphRetries counts backoff retries per pipeline step
	GraphRetries *prometheus.CounterVec
	// GraphFailovers counts primary -> secondary host switches
	GraphFailovers *prometheus.CounterVec
	// GraphLatency tracks per-attempt latency
	GraphLatency *prometheus.HistogramVec
	// TokenRefreshes counts refresh outcomes per platform
	TokenRefreshes *prometheus.CounterVec
	// PublishResults counts terminal publish states
	PublishResults *prometheus.CounterVec
	// HTTPRequestsTotal total HTTP requests served
	HTTPRequestsTotal *prometheus.CounterVec
	// RequestLatency tracks HTTP request latency by endpoint and method
	RequestLatency *prometheus.HistogramVec

	registry *prometheus.Registry
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		GraphCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_api_calls_total",
				Help:      "Total number of Graph API call attempts",
			},
			[]string{"step", "host", "outcome"},
		),
		GraphRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_api_retries_total",
				Help:      "Total number of Graph API retries after backoff",
			},
			[]string{"step"},
		),
		GraphFailovers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_api_failovers_total",
				Help:      "Total number of secondary host failovers",
			},
			[]string{"step"},
		),
		GraphLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_api_call_duration_seconds",
				Help:      "Graph API attempt latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"step"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_total",
				Help:      "Total number of token refresh attempts",
			},
			[]string{"platform", "outcome"},
		),
		PublishResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_results_total",
				Help:      "Total number of publish attempts by final state",
			},
			[]string{"platform", "state", "error_kind"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint", "method", "status"},
		),
	}

	registry.MustRegister(
		m.GraphCalls,
		m.GraphRetries,
		m.GraphFailovers,
		m.GraphLatency,
		m.TokenRefreshes,
		m.PublishResults,
		m.HTTPRequestsTotal,
		m.RequestLatency,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordGraphCall(step, host, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.GraphCalls.WithLabelValues(step, host, outcome).Inc()
	m.GraphLatency.WithLabelValues(step).Observe(durationSeconds)
}

func (m *Metrics) RecordGraphRetry(step string) {
	if m == nil {
		return
	}
	m.GraphRetries.WithLabelValues(step).Inc()
}

func (m *Metrics) RecordGraphFailover(step string) {
	if m == nil {
		return
	}
	m.GraphFailovers.WithLabelValues(step).Inc()
}

func (m *Metrics) RecordTokenRefresh(platform, outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) RecordPublishResult(platform, state, errorKind string) {
	if m == nil {
		return
	}
	m.PublishResults.WithLabelValues(platform, state, errorKind).Inc()
}

func (m *Metrics) RecordHTTPRequest(endpoint, method, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.RequestLatency.WithLabelValues(endpoint, method, status).Observe(durationSeconds)
}
