package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(quotaDecisionsTotal) }

var quotaDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quota_decisions_total",
		Help: "Fiber quota checks by result.",
	},
	[]string{"result"}, // 'authorized', 'boundary', 'denied'
)

func IncQuotaDecision(result string) {
	quotaDecisionsTotal.WithLabelValues(norm(result)).Inc()
}
