// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Terminal message outcomes recorded by the broker loop.
const (
	ResultApplied = "applied"
	ResultSpilled = "spilled"
	ResultSkipped = "skipped"
)

var (
	registerOnce sync.Once

	// MessagesTotal counts broker messages by terminal outcome.
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokesync_messages_total",
			Help: "Broker messages observed, labeled by outcome.",
		},
		[]string{"result"},
	)

	// MessageDurationSeconds tracks per-message processing time by outcome.
	MessageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pokesync_message_processing_duration_seconds",
			Help:    "Message processing duration in seconds by outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// ReplayedTotal counts failure-queue messages successfully replayed.
	ReplayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pokesync_replayed_messages_total",
			Help: "Failure-queue messages successfully replayed.",
		},
	)

	// ConsumerReady reports whether the broker consumer is subscribed.
	ConsumerReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pokesync_consumer_ready",
			Help: "Broker consumer readiness (1=subscribed, 0=not).",
		},
	)

	// HTTPRequestsTotal counts query-surface requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokesync_http_requests_total",
			Help: "HTTP requests processed, labeled by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds tracks query-surface latency.
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pokesync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers all collectors with the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesTotal,
			MessageDurationSeconds,
			ReplayedTotal,
			ConsumerReady,
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
		)
		ConsumerReady.Set(0)
	})
}

// ObserveMessage records one terminal message outcome and its duration.
func ObserveMessage(result string, dur time.Duration) {
	MessagesTotal.WithLabelValues(result).Inc()
	MessageDurationSeconds.WithLabelValues(result).Observe(dur.Seconds())
}

// SetConsumerReady flips the consumer readiness gauge.
func SetConsumerReady(ready bool) {
	if ready {
		ConsumerReady.Set(1)
		return
	}
	ConsumerReady.Set(0)
}

// Handler serves the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
