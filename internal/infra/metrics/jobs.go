package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(routeJobsTotal) }

var routeJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "route_jobs_total",
		Help: "Deferred route persistence jobs, labeled by outcome.",
	},
	[]string{"status"}, // 'queued', 'completed', 'retried', 'failed', 'rejected'
)

func IncRouteJob(status string) {
	routeJobsTotal.WithLabelValues(norm(status)).Inc()
}
