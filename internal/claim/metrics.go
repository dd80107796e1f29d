package claim

import "github.com/prometheus/client_golang/prometheus"

var (
	// CreateLatency tracks the time a Create call takes, including any
	// contention retries.
	CreateLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claim_create_latency_ms",
			Help:    "Latency of claim creation in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms to ~2s
		},
	)

	// CreateResponses tracks total claim attempts and their outcomes.
	CreateResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claim_create_responses",
			Help: "Total number of claim creation attempts and their results",
		},
		[]string{"result"}, // "success", "empty", "conflict", "error"
	)

	// ContentionRetries counts WATCH/MULTI/EXEC retries consumed across
	// all claim operations, a proxy for how hot a queue's counter key is.
	ContentionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "claim_contention_retries_total",
			Help: "Total number of optimistic-concurrency retries across claim operations",
		},
	)

	// BatchSize records how many messages a successful Create handed out.
	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claim_batch_size",
			Help:    "Number of messages returned by a successful claim creation",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		},
	)
)

func init() {
	// This package is not wired into a controller-runtime manager, so it
	// registers against the default prometheus registerer instead of
	// sigs.k8s.io/controller-runtime/pkg/metrics' registry.
	prometheus.MustRegister(CreateLatency, CreateResponses, ContentionRetries, BatchSize)
}
