// Package observability holds the shim's Prometheus metrics and the HTTP
// middleware that records them.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lfc"

// LLMBuckets spans 100ms to two minutes, the range of local inference.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Completion modes, the label of CompletionsTotal.
const (
	ModeIntercepted = "intercepted"
	ModePassthrough = "passthrough"
	ModeRejected    = "rejected"
)

// HTTP surface.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "requests_total",
		Help:      "HTTP requests by method, status class and route.",
	}, []string{"method", "status", "route"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration.",
		Buckets:   LLMBuckets,
	}, []string{"method", "route"})

	StreamingConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "streaming_connections_active",
		Help:      "Responses currently streaming server-sent events.",
	})

	AuthRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_rejected_total",
		Help:      "Requests rejected by the authentication chain.",
	})
)

// Facade and backend.
var (
	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completions_total",
		Help:      "Facade calls by how they were served.",
	}, []string{"mode"})

	FunctionCallsParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "function_calls_parsed_total",
		Help:      "Function calls recovered from model text.",
	}, []string{"function"})

	FunctionSegmentsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "function_segments_dropped_total",
		Help:      "<<function>> segments that did not hold a call.",
	})

	ProviderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Requests sent to the backend.",
	}, []string{"provider", "model", "status"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_latency_seconds",
		Help:      "Backend round-trip latency.",
		Buckets:   LLMBuckets,
	}, []string{"provider", "model"})
)

// RecordCompletion counts one facade call served in mode.
func RecordCompletion(mode string) {
	CompletionsTotal.WithLabelValues(mode).Inc()
}

// RecordDecoded counts the calls recovered from one reply and the
// segments dropped on the way.
func RecordDecoded(functions []string, dropped int) {
	for _, name := range functions {
		FunctionCallsParsedTotal.WithLabelValues(name).Inc()
	}
	if dropped > 0 {
		FunctionSegmentsDroppedTotal.Add(float64(dropped))
	}
}

// ObserveProvider records one backend round trip that began at start.
func ObserveProvider(provider, model, status string, start time.Time) {
	ProviderRequestsTotal.WithLabelValues(provider, model, status).Inc()
	ProviderLatency.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}
