package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Kafka
	kafkaMessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_messages_sent_total",
			Help: "Total number of Kafka messages successfully sent.",
		},
	)
	kafkaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Total number of Kafka-related errors.",
		},
		[]string{"component", "operation"},
	)

	// Business
	messagesDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_dispatched_total",
			Help: "Total number of dispatched messages by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)
	recipientsPerDispatch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_recipients_count",
			Help:    "Distribution of recipient counts per dispatch.",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Time spent delivering one dispatch (seconds).",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform"},
	)
	messagesStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messages_count",
			Help: "Current count of persisted messages by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	// Outbox
	outboxStatusCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "outbox_events_count",
			Help: "Current count of outbox events by status.",
		},
		[]string{"status"},
	)
	outboxSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_sent_total",
			Help: "Total number of outbox events marked as sent.",
		},
	)
	outboxFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_failed_total",
			Help: "Total number of outbox events marked as failed.",
		},
	)
	outboxProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_processing_duration_seconds",
			Help:    "Time spent publishing a single outbox event (seconds).",
			Buckets: prometheus.DefBuckets,
		},
	)
	outboxRetryCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_retries_total",
			Help: "Total number of outbox publish retries (failed attempts).",
		},
	)
	outboxLagSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_lag_seconds",
			Help:    "Lag between outbox event creation and publish attempt (seconds).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	outboxPendingCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_pending_count",
			Help: "Current number of pending outbox events.",
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,

			kafkaMessagesSent,
			kafkaErrors,

			messagesDispatched,
			recipientsPerDispatch,
			dispatchDuration,
			messagesStatus,

			outboxStatusCount,
			outboxSentTotal,
			outboxFailedTotal,
			outboxProcessingDuration,
			outboxRetryCount,
			outboxLagSeconds,
			outboxPendingCount,
		)
		registerRedisMetrics()
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP ---

func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, code).Inc()
	httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// --- Kafka ---

func IncKafkaSent() { kafkaMessagesSent.Inc() }

func IncKafkaError(component, operation string) {
	kafkaErrors.WithLabelValues(component, operation).Inc()
}

// --- Business ---

func outcomeLabel(sent bool) string {
	if sent {
		return "sent"
	}
	return "failed"
}

func IncMessageDispatched(platform string, sent bool) {
	messagesDispatched.WithLabelValues(platform, outcomeLabel(sent)).Inc()
}

func ObserveRecipientsCount(n int) {
	recipientsPerDispatch.Observe(float64(n))
}

func ObserveDispatchDuration(platform string, d time.Duration) {
	dispatchDuration.WithLabelValues(platform).Observe(d.Seconds())
}

func SetMessagesCount(platform string, sent bool, n int64) {
	messagesStatus.WithLabelValues(platform, outcomeLabel(sent)).Set(float64(n))
}

// --- Outbox ---

func IncOutboxSent()   { outboxSentTotal.Inc() }
func IncOutboxFailed() { outboxFailedTotal.Inc() }
func IncOutboxRetry()  { outboxRetryCount.Inc() }

func ObserveOutboxProcessing(d time.Duration) {
	outboxProcessingDuration.Observe(d.Seconds())
}

func ObserveOutboxLagSeconds(s float64) {
	outboxLagSeconds.Observe(s)
}

func SetOutboxStatusCount(status string, n int64) {
	outboxStatusCount.WithLabelValues(status).Set(float64(n))
}

func SetOutboxPendingCount(n int64) {
	outboxPendingCount.Set(float64(n))
}

func fmtInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
