package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound calls to the recommendation API.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_api_requests_total",
			Help: "Total number of recommendation API requests (by method and status).",
		},
		[]string{"method", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_api_request_duration_seconds",
			Help:    "Duration of recommendation API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"method"},
	)

	// Token install/refresh outcomes seen by the guard and the transport.
	TokenOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_token_operations_total",
			Help: "Token operations by kind and result.",
		},
		[]string{"op", "result"}, // result = "ok" | "error" | "suppressed" | "missing"
	)

	SearchPageFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_search_page_failures_total",
			Help: "Search pages that failed and were retried or aborted the iteration.",
		},
	)

	ChannelsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_channels_synced_total",
			Help: "Email channels written to a sink.",
		},
		[]string{"sink", "result"},
	)

	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"},
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in secret cache.",
		},
		[]string{"result"}, // hit | miss
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of errors by component.",
		},
		[]string{"component", "reason"},
	)

	LastSyncTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recommend_last_sync_timestamp",
			Help: "Timestamp (unix seconds) of the last successful channel sync.",
		},
		[]string{"component"},
	)
)

// ObserveDuration records the time elapsed since start on the given histogram.
func ObserveDuration(h *prometheus.HistogramVec, start time.Time, labels ...string) {
	h.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
}

func IncRequest(method, status string) {
	RequestsTotal.WithLabelValues(method, status).Inc()
}

func IncTokenOperation(op, result string) {
	TokenOperations.WithLabelValues(op, result).Inc()
}

func IncSearchPageFailure() {
	SearchPageFailures.Inc()
}

func IncChannelSynced(sink, result string) {
	ChannelsSynced.WithLabelValues(sink, result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastSync(component string, t time.Time) {
	LastSyncTimestamp.WithLabelValues(component).Set(float64(t.Unix()))
}
