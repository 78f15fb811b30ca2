// Package metrics exposes Prometheus metrics for operation dispatch and
// connector pooling.
//
// # Basic Usage
//
//	timer := metrics.NewTimer(api.OpSearch)
//	_, err := facade.Search(ctx, "users", nil, handler, nil)
//	metrics.ObserveOperation("crm", api.OpSearch, err, timer.Stop())
//
// All collectors register with the default Prometheus registry on package
// initialization; expose them with promhttp.Handler().
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Release failure kinds.
const (
	ReleaseKindPoolReturn = "pool_return"
	ReleaseKindDispose    = "dispose"
)

var (
	// OperationsTotal counts dispatched operations.
	// Labels: connector, operation, status (success/error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opgate_operations_total",
			Help: "Total number of dispatched connector operations",
		},
		[]string{"connector", "operation", "status"},
	)

	// OperationDuration tracks the time from acquisition to release.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opgate_operations_duration_seconds",
			Help:    "Duration of dispatched connector operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"connector", "operation"},
	)

	// ReleaseFailures counts swallowed cleanup errors.
	// Labels: connector, kind (pool_return/dispose)
	ReleaseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opgate_operations_release_failures_total",
			Help: "Cleanup failures swallowed while releasing connectors",
		},
		[]string{"connector", "kind"},
	)

	// DeferredOutstanding tracks subscriptions still holding a connector.
	DeferredOutstanding = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opgate_operations_deferred_outstanding",
			Help: "Subscriptions whose connector has not been released yet",
		},
		[]string{"connector"},
	)

	// PoolBorrows counts borrow attempts by outcome.
	// Labels: pool, status (success/exhausted/unavailable/error)
	PoolBorrows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opgate_pool_borrows_total",
			Help: "Connector borrow attempts",
		},
		[]string{"pool", "status"},
	)

	// PoolReturns counts connectors handed back to a pool.
	// Labels: pool, outcome (reused/destroyed)
	PoolReturns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opgate_pool_returns_total",
			Help: "Connectors returned to a pool",
		},
		[]string{"pool", "outcome"},
	)

	// PoolEvictions counts idle connectors destroyed by the sweeper.
	PoolEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opgate_pool_evictions_total",
			Help: "Idle connectors evicted from a pool",
		},
		[]string{"pool"},
	)

	// PoolConnectors reports pool occupancy.
	// Labels: pool, state (idle/acquired/total)
	PoolConnectors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "opgate_pool_connectors",
			Help: "Connectors held by a pool by state",
		},
		[]string{"pool", "state"},
	)
)

// ObserveOperation records one dispatched operation.
func ObserveOperation(connector, operation string, err error, d time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	OperationsTotal.WithLabelValues(connector, operation, status).Inc()
	OperationDuration.WithLabelValues(connector, operation).Observe(d.Seconds())
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label the timer was created with.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It may be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
