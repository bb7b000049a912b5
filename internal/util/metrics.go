package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CodesGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activation_codes_generated_total",
		Help: "Total number of activation codes generated",
	}, []string{"variant"})

	BatchesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "code_batches_created_total",
		Help: "Total number of code batches created",
	})

	CodeCollisionsRetriedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "activation_code_collisions_retried_total",
		Help: "Total number of code suffixes regenerated after a collision",
	})

	GenerateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "code_generation_latency_seconds",
		Help:    "Latency of batch generation including persistence",
		Buckets: prometheus.DefBuckets,
	})

	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activation_code_redemptions_total",
		Help: "Total number of redemption attempts by result",
	}, []string{"result"})

	BatchCodesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batch_codes_deleted_total",
		Help: "Total number of unused codes removed by batch deletion",
	})

	BatchCodesPreservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "batch_codes_preserved_total",
		Help: "Total number of used codes kept during batch deletion",
	})

	CommissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "partner_commissions_total",
		Help: "Total number of commission state changes",
	}, []string{"status"})

	InventoryMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movements_total",
		Help: "Total number of recorded inventory movements",
	}, []string{"type"})

	InventoryRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movements_rejected_total",
		Help: "Total number of rejected inventory movements",
	}, []string{"reason"})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_low_stock_alerts_total",
		Help: "Total number of low stock alerts emitted",
	})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domain_events_publish_failed_total",
		Help: "Total number of domain events that could not be published",
	}, []string{"type"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Total number of notification dispatch attempts by outcome",
	}, []string{"type", "result"})

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
