// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QualificationEvaluationsTotal tracks evaluations by result
	QualificationEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "qualification",
			Name:      "evaluations_total",
			Help:      "Total number of qualification evaluations by result",
		},
		[]string{"entity_kind", "result"},
	)

	// QualificationEvaluationDuration tracks evaluation duration in seconds
	QualificationEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "qualification",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of qualification evaluations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"entity_kind"},
	)

	// UnresolvedReferencesTotal tracks rules evaluated against missing or inactive fields
	UnresolvedReferencesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "qualification",
			Name:      "unresolved_references_total",
			Help:      "Total number of rule operands that referenced an unresolved field",
		},
		[]string{"entity_kind"},
	)

	// CoercionFailuresTotal tracks rejected values by declared type
	CoercionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "values",
			Name:      "coercion_failures_total",
			Help:      "Total number of values rejected during coercion by declared type",
		},
		[]string{"declared_type"},
	)

	// ValuesWrittenTotal tracks value slots written or removed
	ValuesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "values",
			Name:      "written_total",
			Help:      "Total number of value slots written or removed",
		},
		[]string{"entity_kind", "operation"},
	)

	// DefinitionCacheTotal tracks definition cache lookups
	DefinitionCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "definition_cache",
			Name:      "lookups_total",
			Help:      "Total number of definition cache lookups by outcome",
		},
		[]string{"backend", "outcome"},
	)

	// KafkaMessagesPublished tracks published messages
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesConsumed tracks consumed messages
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of messages consumed from Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordEvaluation records a qualification evaluation
func RecordEvaluation(entityKind, result string, durationSeconds float64) {
	QualificationEvaluationsTotal.WithLabelValues(entityKind, result).Inc()
	QualificationEvaluationDuration.WithLabelValues(entityKind).Observe(durationSeconds)
}

// RecordUnresolvedReference records a rule operand that could not be resolved
func RecordUnresolvedReference(entityKind string) {
	UnresolvedReferencesTotal.WithLabelValues(entityKind).Inc()
}

// RecordCoercionFailure records a value rejected by coercion
func RecordCoercionFailure(declaredType string) {
	CoercionFailuresTotal.WithLabelValues(declaredType).Inc()
}

// RecordValueWrite records a value slot being set or deleted
func RecordValueWrite(entityKind, operation string) {
	ValuesWrittenTotal.WithLabelValues(entityKind, operation).Inc()
}

// RecordCacheLookup records a definition cache hit or miss
func RecordCacheLookup(backend string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	DefinitionCacheTotal.WithLabelValues(backend, outcome).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordKafkaConsume records a consumed Kafka message
func RecordKafkaConsume(topic, status string) {
	KafkaMessagesConsumed.WithLabelValues(topic, status).Inc()
}
