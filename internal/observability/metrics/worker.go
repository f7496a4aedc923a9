package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

const namespace = "sentinel"

// DeliveryMetrics observes the alert delivery workers.
type DeliveryMetrics struct {
	registry *prometheus.Registry
	service  string

	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	breakerChanges  *prometheus.CounterVec
}

// NewDeliveryMetrics registers on registry, or on a private one when nil.
func NewDeliveryMetrics(service string, registry *prometheus.Registry) *DeliveryMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "attempts_total",
			Help:      "Alert delivery attempts by outcome.",
		},
		[]string{"service", "outcome"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "attempt_duration_seconds",
			Help:      "Alert delivery attempt duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "in_flight",
			Help:      "Number of in-flight delivery attempts.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "queue_lag_seconds",
			Help:      "Delay between a job becoming due and a worker claiming it.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	breakerChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by operation and target state.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(attemptsTotal, attemptDuration, inFlight, queueLag, breakerChanges)

	return &DeliveryMetrics{
		registry:        registry,
		service:         service,
		attemptsTotal:   attemptsTotal,
		attemptDuration: attemptDuration,
		inFlight:        inFlight,
		queueLag:        queueLag,
		breakerChanges:  breakerChanges,
	}
}

func (m *DeliveryMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *DeliveryMetrics) StartAttempt() {
	m.inFlight.Inc()
}

func (m *DeliveryMetrics) FinishAttempt(outcome domain.JobState, duration time.Duration) {
	m.inFlight.Dec()
	m.attemptsTotal.WithLabelValues(m.service, string(outcome)).Inc()
	m.attemptDuration.WithLabelValues(m.service, string(outcome)).Observe(duration.Seconds())
}

func (m *DeliveryMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// ObserveBreakerTransition has the shape of a resilience state listener.
func (m *DeliveryMetrics) ObserveBreakerTransition(operation, to string) {
	m.breakerChanges.WithLabelValues(m.service, operation, to).Inc()
}
