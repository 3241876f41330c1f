// Package metrics provides Prometheus metrics for the chat pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rag-chat/internal/domain"
)

var (
	// RequestsTotal counts chat requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "requests_total",
			Help:      "Total number of chat requests",
		},
		[]string{"outcome"},
	)

	// StageDuration measures pipeline stage duration.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragchat",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// DegradedTotal counts locally recovered failures by kind.
	DegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragchat",
			Name:      "degraded_total",
			Help:      "Total number of degraded pipeline steps",
		},
		[]string{"kind"},
	)

	// ChatLogQueueDepth tracks records waiting to be persisted.
	ChatLogQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragchat",
			Name:      "chat_log_queue_depth",
			Help:      "Number of chat log records waiting to be persisted",
		},
	)
)

// Recorder feeds pipeline observations into the package collectors.
type Recorder struct{}

// RecordRequest records the outcome of a chat request.
func (Recorder) RecordRequest(outcome string) {
	RequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordStage records how long a stage took.
func (Recorder) RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordDegraded records a locally recovered failure.
func (Recorder) RecordDegraded(kind domain.DegradeKind) {
	DegradedTotal.WithLabelValues(string(kind)).Inc()
}
