// Package observability provides Prometheus metrics for deepspeak clients:
// outbound call outcomes, token usage, streams and raw HTTP traffic.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Call outcomes used as the status label of ClientRequestsTotal.
const (
	StatusOK             = "ok"
	StatusHTTPError      = "http_error"
	StatusTransportError = "transport_error"
)

// Token kinds used as the kind label of TokensTotal.
const (
	TokensInput     = "input"
	TokensOutput    = "output"
	TokensCacheHit  = "cache_hit"
	TokensCacheMiss = "cache_miss"
)

var (
	// ClientRequestsTotal counts client operations by outcome.
	ClientRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepspeak_client_requests_total",
			Help: "Client operations by outcome",
		},
		[]string{"operation", "status"},
	)

	// ClientRequestDuration records the time until a response (or, for
	// streams, its headers) was received.
	ClientRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deepspeak_client_request_duration_seconds",
			Help:    "Client operation latency",
			Buckets: LLMBuckets,
		},
		[]string{"operation"},
	)

	// TokensTotal counts tokens reported in usage blocks.
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepspeak_client_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "kind"},
	)

	// StreamChoicesTotal counts choices emitted by stream decoders.
	StreamChoicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepspeak_stream_choices_total",
			Help: "Streamed choices",
		},
		[]string{"model"},
	)

	// StreamsActive tracks streams whose body is still being read.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "deepspeak_streams_active",
			Help: "Active streams",
		},
	)

	// HTTPRequestsTotal counts outbound HTTP exchanges seen by
	// InstrumentRoundTripper.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deepspeak_http_requests_total",
			Help: "Outbound HTTP requests",
		},
		[]string{"method", "path", "code"},
	)
)

func init() {
	prometheus.MustRegister(
		ClientRequestsTotal,
		ClientRequestDuration,
		TokensTotal,
		StreamChoicesTotal,
		StreamsActive,
		HTTPRequestsTotal,
	)
}

// ObserveCall records the outcome and latency of one client operation.
func ObserveCall(operation, status string, elapsed time.Duration) {
	ClientRequestsTotal.WithLabelValues(operation, status).Inc()
	ClientRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveTokens adds the counters of one usage block. Zero counts are
// skipped so unused kinds do not create series.
func ObserveTokens(model string, input, output, cacheHit, cacheMiss int64) {
	if model == "" {
		model = "unknown"
	}
	for _, kv := range []struct {
		kind string
		n    int64
	}{
		{TokensInput, input},
		{TokensOutput, output},
		{TokensCacheHit, cacheHit},
		{TokensCacheMiss, cacheMiss},
	} {
		if kv.n > 0 {
			TokensTotal.WithLabelValues(model, kv.kind).Add(float64(kv.n))
		}
	}
}

// ObserveStreamChoice counts one streamed choice.
func ObserveStreamChoice(model string) {
	if model == "" {
		model = "unknown"
	}
	StreamChoicesTotal.WithLabelValues(model).Inc()
}
