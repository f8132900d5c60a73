package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	// Admission control metrics
	QuotaRejections    *prometheus.CounterVec
	IsolationDenials   *prometheus.CounterVec
	ActiveReservations *prometheus.GaugeVec
	RefreshDuration    prometheus.Histogram

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Tenant metrics
	KnownTenants prometheus.Gauge
}

// NewMetrics creates metrics registered against the default registerer
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered against reg. Tests pass a
// fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_operations_total",
				Help: "Total number of facade operations processed",
			},
			[]string{"operation", "tenant_id", "outcome"},
		),

		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowgate_operation_duration_seconds",
				Help:    "Duration of facade operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_operation_errors_total",
				Help: "Total number of operation errors",
			},
			[]string{"operation", "error_type"},
		),

		QuotaRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_quota_rejections_total",
				Help: "Total number of operations rejected by quota enforcement",
			},
			[]string{"tenant_id", "resource"},
		),

		IsolationDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_isolation_denials_total",
				Help: "Total number of operations denied by tenant isolation checks",
			},
			[]string{"reason"},
		),

		ActiveReservations: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowgate_active_reservations",
				Help: "Admission reservations currently held, per tenant",
			},
			[]string{"tenant_id"},
		),

		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowgate_store_refresh_duration_seconds",
				Help:    "Duration of metrics reconciliation reads against the flow store",
				Buckets: prometheus.DefBuckets,
			},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),

		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowgate_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		KnownTenants: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowgate_known_tenants",
				Help: "Number of tenants with cached metrics",
			},
		),
	}
}
