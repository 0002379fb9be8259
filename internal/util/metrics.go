package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdjustmentsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_adjustments_applied_total",
		Help: "Total number of stock adjustments applied",
	}, []string{"type"})

	AdjustmentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_adjustments_rejected_total",
		Help: "Total number of stock adjustments rejected",
	}, []string{"reason"})

	MovementsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movements_recorded_total",
		Help: "Total number of ledger movements recorded",
	}, []string{"type"})

	ReservationsHeldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_held_total",
		Help: "Total number of reservations held",
	})

	ReservationsCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_committed_total",
		Help: "Total number of reservations committed",
	})

	ReservationsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservations_released_total",
		Help: "Total number of reservations released",
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_failed_total",
		Help: "Total number of failed reservation operations",
	}, []string{"reason"})

	AdjustmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_adjustment_latency_seconds",
		Help:    "Latency of stock adjustment operations",
		Buckets: prometheus.DefBuckets,
	})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_reservation_latency_seconds",
		Help:    "Latency of reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_cache_hits_total",
		Help: "Total number of query cache hits",
	}, []string{"query"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_cache_misses_total",
		Help: "Total number of query cache misses",
	}, []string{"query"})

	ReconciliationRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reconciliation_runs_total",
		Help: "Total number of reconciliation checks performed",
	})

	ReconciliationMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reconciliation_mismatches_total",
		Help: "Total number of ledger mismatches detected",
	})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_low_stock_alerts_total",
		Help: "Total number of low stock alerts published",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
