// Package metrics provides Prometheus metrics for the Bramble service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks resolve calls by outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "resolution",
			Name:      "resolves_total",
			Help:      "Total number of resolution calls by outcome",
		},
		[]string{"tenant_id", "entity_type", "outcome"},
	)

	// ResolutionDuration tracks resolve latency in seconds
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bramble",
			Subsystem: "resolution",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of resolution calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"entity_type"},
	)

	// CacheLookupsTotal tracks resolution cache hits and misses
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of resolution cache lookups by result",
		},
		[]string{"result"},
	)

	// MergesTotal tracks committed merges
	MergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "merging",
			Name:      "merges_total",
			Help:      "Total number of committed entity merges",
		},
	)

	// ReviewsSubmittedTotal tracks items entering the review queue
	ReviewsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "review",
			Name:      "submitted_total",
			Help:      "Total number of matches submitted for human review",
		},
	)

	// ReviewsDecidedTotal tracks review decisions by action
	ReviewsDecidedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "review",
			Name:      "decided_total",
			Help:      "Total number of review decisions by action",
		},
		[]string{"action"},
	)

	// LLMCallsTotal tracks LLM enrichment calls by status
	LLMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM comparison calls by status",
		},
		[]string{"status"},
	)

	// KafkaMessagesConsumed tracks mention messages consumed from Kafka
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of messages consumed from Kafka by status",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesPublished tracks events published to Kafka
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bramble",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka by status",
		},
		[]string{"topic", "status"},
	)
)

// RecordResolution records one resolve call.
func RecordResolution(tenantID, entityType, outcome string, durationSeconds float64) {
	ResolutionsTotal.WithLabelValues(tenantID, entityType, outcome).Inc()
	ResolutionDuration.WithLabelValues(entityType).Observe(durationSeconds)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordLLMCall records an LLM comparison call.
func RecordLLMCall(status string) {
	LLMCallsTotal.WithLabelValues(status).Inc()
}

// RecordKafkaConsume records a consumed message.
func RecordKafkaConsume(topic, status string) {
	KafkaMessagesConsumed.WithLabelValues(topic, status).Inc()
}

// RecordKafkaPublish records a published message.
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
