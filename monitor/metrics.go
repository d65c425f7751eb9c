package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmgateway",
		Name:      "requests_total",
		Help:      "Admitted chat completion requests by provider and model.",
	}, []string{"provider", "model"})

	RelayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "llmgateway",
		Name:      "relay_duration_seconds",
		Help:      "End-to-end relay latency by provider and model.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"provider", "model"})

	RelayCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmgateway",
		Name:      "relay_cost_usd_total",
		Help:      "Accumulated request cost in USD by provider and model.",
	}, []string{"provider", "model"})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmgateway",
		Name:      "cache_hits_total",
		Help:      "Response cache hits by kind (response or stream).",
	}, []string{"kind"})

	LogQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "llmgateway",
		Name:      "log_queue_depth",
		Help:      "Pending usage log records awaiting the worker.",
	})

	WorkerSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmgateway",
		Name:      "worker_sweeps_total",
		Help:      "Credit sweep attempts by outcome (processed, contended, failed).",
	}, []string{"outcome"})
)

// ObserveRelay records the latency and cost of one completed relay.
func ObserveRelay(provider, model string, elapsed time.Duration, costUSD float64) {
	RelayDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	if costUSD > 0 {
		RelayCostUSD.WithLabelValues(provider, model).Add(costUSD)
	}
}
