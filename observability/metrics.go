package observability

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics aggregates the prometheus instruments describing lending pool
// activity and the HTTP surface in front of it.
type PoolMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	liquidity  *prometheus.GaugeVec
	borrowed   *prometheus.GaugeVec
	rate       *prometheus.GaugeVec
}

var (
	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics
)

// Metrics returns the lazily-initialised pool metrics registry.
func Metrics() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditpool",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Total pool operations segmented by operation and outcome.",
			}, []string{"pool", "op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "creditpool",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for pool API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			liquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "creditpool",
				Subsystem: "pool",
				Name:      "total_liquidity",
				Help:      "Assets currently held by the pool.",
			}, []string{"pool"}),
			borrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "creditpool",
				Subsystem: "pool",
				Name:      "total_borrowed",
				Help:      "Outstanding debt including accrued interest.",
			}, []string{"pool"}),
			rate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "creditpool",
				Subsystem: "pool",
				Name:      "borrow_rate_bps",
				Help:      "Current annualized borrow rate in basis points.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			poolRegistry.operations,
			poolRegistry.latency,
			poolRegistry.liquidity,
			poolRegistry.borrowed,
			poolRegistry.rate,
		)
	})
	return poolRegistry
}

// ObserveOperation records one pool operation and its handler latency.
func (m *PoolMetrics) ObserveOperation(pool, op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	pool = strings.TrimSpace(pool)
	m.operations.WithLabelValues(pool, op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetPoolGauges refreshes the per-pool accounting gauges. Values larger than
// float64 precision degrade gracefully; the gauges are observability only.
func (m *PoolMetrics) SetPoolGauges(pool string, liquidity, borrowed *big.Int, rateBps uint64) {
	if m == nil {
		return
	}
	pool = strings.TrimSpace(pool)
	if liquidity != nil {
		value, _ := new(big.Float).SetInt(liquidity).Float64()
		m.liquidity.WithLabelValues(pool).Set(value)
	}
	if borrowed != nil {
		value, _ := new(big.Float).SetInt(borrowed).Float64()
		m.borrowed.WithLabelValues(pool).Set(value)
	}
	m.rate.WithLabelValues(pool).Set(float64(rateBps))
}
