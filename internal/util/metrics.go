package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_runs_total",
		Help: "Catalog sync runs by job and outcome",
	}, []string{"job", "outcome"})

	SyncPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_pages_total",
		Help: "Remote pages fetched by sync jobs",
	}, []string{"job"})

	SyncItemsUpsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_items_upserted_total",
		Help: "Documents upserted by sync jobs",
	}, []string{"job"})

	SyncRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_sync_run_duration_seconds",
		Help:    "Wall time of a full sync run",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"job"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Latency of outbound calls to the commerce and payment gateways",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation", "outcome"})

	GatewayTokenRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commerce_gateway_token_refresh_total",
		Help: "Client-credentials exchanges against the commerce platform",
	})

	PaymentInitiatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_initiated_total",
		Help: "3D payments initiated (pending orders created)",
	})

	PaymentCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Payment gateway callbacks by outcome",
	}, []string{"outcome"})

	OrdersCommittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_committed_total",
		Help: "Orders committed locally after a successful payment",
	})

	OrdersMirrorFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_mirror_failed_total",
		Help: "Paid orders that could not be mirrored to the commerce platform",
	})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refunds_total",
		Help: "Refund attempts by outcome",
	}, []string{"outcome"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Commerce platform webhook events by scope and outcome",
	}, []string{"scope", "outcome"})

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

var EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_events_consumed_total",
	Help: "Consumed kafka messages by topic and outcome",
}, []string{"topic", "outcome"})
