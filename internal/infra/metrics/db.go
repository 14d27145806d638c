package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbPoolEmptyAcquires, dbPoolAcquireSeconds) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total | idle | acquired | max
	)
	dbPoolEmptyAcquires = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_empty_acquires",
		Help: "Cumulative acquires that had to wait for a free connection.",
	})
	dbPoolAcquireSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_acquire_seconds",
		Help: "Cumulative time spent acquiring connections.",
	})
)

// PoolStats is a driver-neutral snapshot of the connection pool.
type PoolStats struct {
	Total, Idle, Acquired, Max int32
	EmptyAcquires              int64
	AcquireSeconds             float64
}

func SetDBPoolStats(s PoolStats) {
	dbPoolConns.WithLabelValues("total").Set(float64(s.Total))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.Idle))
	dbPoolConns.WithLabelValues("acquired").Set(float64(s.Acquired))
	dbPoolConns.WithLabelValues("max").Set(float64(s.Max))
	dbPoolEmptyAcquires.Set(float64(s.EmptyAcquires))
	dbPoolAcquireSeconds.Set(s.AcquireSeconds)
}
