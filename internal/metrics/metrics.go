// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssistantCalls counts assistant gateway calls by outcome.
	AssistantCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcal_assistant_calls_total",
			Help: "Total number of assistant gateway calls by outcome",
		},
		[]string{"outcome"}, // ok, not_configured, error
	)

	// AssistantDuration observes the latency of the generative call.
	AssistantDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billcal_assistant_duration_seconds",
			Help:    "Duration of assistant gateway calls in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// CheckInUpserts counts daily check-in writes triggered by goal talk.
	CheckInUpserts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billcal_checkin_upserts_total",
			Help: "Total number of daily check-in upserts",
		},
	)

	// NotificationsSent counts delivered bill notifications by offset kind.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcal_notifications_sent_total",
			Help: "Total number of bill notifications sent by kind",
		},
		[]string{"kind"}, // today, tomorrow, upcoming
	)

	// StoreErrors counts failed record store operations.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billcal_store_errors_total",
			Help: "Total number of record store errors by operation",
		},
		[]string{"op"},
	)
)
