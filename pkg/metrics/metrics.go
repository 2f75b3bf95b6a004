package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "medbook"

var (
	once sync.Once

	bookingsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_submitted_total",
			Help:      "Booking submissions by intake result.",
		},
		[]string{"result"},
	)

	workItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "work_items_total",
			Help:      "Work items settled by disposition (ack, reject, requeue).",
		},
		[]string{"disposition"},
	)

	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Booking decisions by outcome.",
		},
		[]string{"status"},
	)

	decisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Time spent in the decision policy.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 3, 4, 5, 7.5, 10, 15},
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Notification publishes by sink and result.",
		},
		[]string{"sink", "result"},
	)

	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rabbitmq_reconnect_attempts_total",
			Help:      "Failed RabbitMQ connection attempts followed by a backoff.",
		},
	)

	sweeperRequeued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_requeued_total",
			Help:      "Stale pending bookings re-enqueued by the sweeper.",
		},
	)

	kafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_messages_total",
			Help:      "Kafka messages by direction (produce, consume) and result.",
		},
		[]string{"direction", "result"},
	)

	kafkaDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_operation_duration_seconds",
			Help:      "Kafka produce/consume handler latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"direction"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsSubmitted,
			workItems,
			decisions,
			decisionDuration,
			notifications,
			reconnects,
			sweeperRequeued,
			kafkaMessages,
			kafkaDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func IncBookingSubmitted(result string) {
	bookingsSubmitted.WithLabelValues(result).Inc()
}

func IncWorkItem(disposition string) {
	workItems.WithLabelValues(disposition).Inc()
}

func ObserveDecision(status string, took time.Duration) {
	decisions.WithLabelValues(status).Inc()
	decisionDuration.Observe(took.Seconds())
}

func IncNotification(sink string, err error) {
	notifications.WithLabelValues(sink, result(err)).Inc()
}

func IncReconnectAttempt() {
	reconnects.Inc()
}

func AddSweeperRequeued(n int) {
	sweeperRequeued.Add(float64(n))
}

func ObserveKafka(direction string, took time.Duration, err error) {
	kafkaMessages.WithLabelValues(direction, result(err)).Inc()
	kafkaDuration.WithLabelValues(direction).Observe(took.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
