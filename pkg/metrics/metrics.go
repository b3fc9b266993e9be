package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Ride lifecycle metrics
	RidesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rides_created_total",
			Help: "Total number of rides created",
		},
		[]string{"ride_type"},
	)

	RideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_transitions_total",
			Help: "Total number of committed ride status transitions",
		},
		[]string{"from", "to"},
	)

	MatchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_match_attempts_total",
			Help: "Match attempts by outcome (won, lost, busy, rejected)",
		},
		[]string{"path", "result"},
	)

	ApplicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ride_applications_total",
			Help: "Apply calls by outcome (created, exists, not_open)",
		},
		[]string{"result"},
	)

	FareQuotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fare_quotes_total",
			Help: "Fare quotes by distance source",
		},
		[]string{"source"},
	)

	// Broadcasting metrics
	BroadcastEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_total",
			Help: "Events handed to subscribers, dropped when a subscriber buffer is full",
		},
		[]string{"result"},
	)

	BroadcastSubscribersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_subscribers",
			Help: "Current number of topic subscriptions in the local hub",
		},
	)

	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)

	// Location metrics
	LocationSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rider_location_samples_total",
			Help: "Rider location samples by sink (kafka, store) and status",
		},
		[]string{"sink", "status"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RabbitMQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"exchange", "status"},
	)

	RabbitMQMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_consumed_total",
			Help: "Total number of messages consumed from RabbitMQ",
		},
		[]string{"queue", "status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, code).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, code).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, err error, start time.Time) {
	DatabaseQueriesTotal.WithLabelValues(operation, status(err)).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordRabbitMQPublish records RabbitMQ publish metrics
func RecordRabbitMQPublish(exchange string, err error) {
	RabbitMQMessagesPublished.WithLabelValues(exchange, status(err)).Inc()
}

// RecordRabbitMQConsume records RabbitMQ consume metrics
func RecordRabbitMQConsume(queue string, err error) {
	RabbitMQMessagesConsumed.WithLabelValues(queue, status(err)).Inc()
}

func RecordLocationSample(sink string, err error) {
	LocationSamplesTotal.WithLabelValues(sink, status(err)).Inc()
}
