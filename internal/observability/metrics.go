package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abo_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "abo_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "abo_bookings_created_total",
			Help: "Total bookings created",
		},
	)

	BookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "abo_booking_conflicts_total",
			Help: "Booking attempts rejected on the slot uniqueness guard",
		},
	)

	OrdersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "abo_orders_expired_total",
			Help: "Pending orders cancelled by the expiry worker",
		},
	)

	WebhooksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "abo_webhooks_processed_total",
			Help: "Payment webhooks by outcome",
		},
		[]string{"outcome"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "abo_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "abo_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
