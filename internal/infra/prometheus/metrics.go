package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts handled requests by method, route template and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prom.CounterOpts{
			Name: "paylink_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prom.HistogramOpts{
			Name:    "paylink_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prom.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPInFlight = promauto.NewGauge(
		prom.GaugeOpts{
			Name: "paylink_http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	PaymentsCreated = promauto.NewCounter(prom.CounterOpts{
		Name: "paylink_payments_created_total",
		Help: "Payment requests issued with a QR code",
	})

	PaymentsConfirmed = promauto.NewCounter(prom.CounterOpts{
		Name: "paylink_payments_confirmed_total",
		Help: "Payments moved from PENDING to CONFIRMED",
	})

	URLsCreated = promauto.NewCounter(prom.CounterOpts{
		Name: "paylink_urls_created_total",
		Help: "Short URLs minted",
	})

	// ShortCodeCollisions counts draws rejected by the bloom filter ("bloom")
	// or by the database uniqueness constraint ("database").
	ShortCodeCollisions = promauto.NewCounterVec(prom.CounterOpts{
		Name: "paylink_short_code_collisions_total",
		Help: "Short code draws that had to be retried",
	}, []string{"source"})

	ClicksRecorded = promauto.NewCounter(prom.CounterOpts{
		Name: "paylink_clicks_recorded_total",
		Help: "Click events persisted",
	})

	ResolveCacheResults = promauto.NewCounterVec(prom.CounterOpts{
		Name: "paylink_resolve_cache_results_total",
		Help: "Short code cache lookups by result",
	}, []string{"result"})
)
