package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookNotificationsTotal,
		gatewayRequestsTotal,
		gatewayRequestDuration,
	)
}

var (
	// result: applied|noop|unknown_order|bad_signature|malformed|error
	webhookNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Inbound payment webhook notifications by result.",
		},
		[]string{"result"},
	)

	// op: create_order|verify_order; result: ok|http_error|timeout|transport
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Outbound payment gateway calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of outbound payment gateway calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"op"},
	)
)

func IncWebhook(result string) {
	webhookNotificationsTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveGatewayRequest(op, result string, seconds float64) {
	gatewayRequestsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	gatewayRequestDuration.WithLabelValues(norm(op)).Observe(seconds)
}
