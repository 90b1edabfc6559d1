package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookEventsTotal,
		webhookDurationMs,
		billingSessionsTotal,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor webhook deliveries by event type and result (applied/duplicate/unmatched/ignored/rejected/failed).",
		},
		[]string{"type", "result"},
	)

	webhookDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_ms",
			Help:    "Webhook handling latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"type"},
	)

	billingSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sessions_total",
			Help: "Hosted checkout/portal sessions by kind and status.",
		},
		[]string{"kind", "status"},
	)
)

func IncWebhookEvent(eventType, result string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(result)).Inc()
}

func ObserveWebhook(eventType string, latencyMs int64) {
	webhookDurationMs.WithLabelValues(norm(eventType)).Observe(float64(latencyMs))
}

func IncBillingSession(kind, status string) {
	billingSessionsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}
