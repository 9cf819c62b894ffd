// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SavesTotal tracks entity save operations by entity type and status
	SavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "processor",
			Name:      "saves_total",
			Help:      "Total number of entity save operations by status",
		},
		[]string{"entity_type", "status"},
	)

	// SaveDuration tracks end-to-end save processing duration in seconds
	SaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "processor",
			Name:      "save_duration_seconds",
			Help:      "Duration of entity save operations in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"entity_type"},
	)

	// PropertiesExtracted tracks properties extracted per handler
	PropertiesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "patterns",
			Name:      "properties_extracted_total",
			Help:      "Total number of properties extracted per pattern handler",
		},
		[]string{"handler"},
	)

	// WebhookDeliveriesTotal tracks outbound webhook deliveries
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "webhooks",
			Name:      "deliveries_total",
			Help:      "Total number of webhook delivery attempts by status",
		},
		[]string{"event_type", "status"},
	)

	// WebhookDeliveryDuration tracks webhook delivery duration
	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "webhooks",
			Name:      "delivery_duration_seconds",
			Help:      "Duration of webhook deliveries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"event_type"},
	)

	// TriggersTotal tracks property trigger dispatches
	TriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "triggers",
			Name:      "dispatches_total",
			Help:      "Total number of property trigger dispatches by status",
		},
		[]string{"entity_type", "property", "status"},
	)

	// KafkaMessagesConsumed tracks messages consumed from Kafka
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of Kafka messages consumed by status",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesProduced tracks messages produced to Kafka
	KafkaMessagesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_produced_total",
			Help:      "Total number of Kafka messages produced by status",
		},
		[]string{"topic", "status"},
	)
)
